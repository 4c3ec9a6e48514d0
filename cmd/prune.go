package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pders01/trace/internal/export"
)

var (
	pruneDryRun bool
	pruneForce  bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old test case files based on retention policy",
	Long: `Remove saved test case files older than the retention period.

The retention policy is configured in ~/.config/trace/config.toml:
  [output]
  retention_days = 90

A retention of 0 keeps files forever.

Example:
  trace prune              # Show what would be pruned
  trace prune --force      # Actually delete the files`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", true, "Show what would be pruned without deleting")
	pruneCmd.Flags().BoolVar(&pruneForce, "force", false, "Actually delete files (overrides dry-run)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Output.RetentionDays <= 0 {
		fmt.Println("Retention is disabled (retention_days = 0); nothing to prune")
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -cfg.Output.RetentionDays)
	fmt.Printf("Retention policy: %d days\n", cfg.Output.RetentionDays)
	fmt.Printf("Cutoff date: %s\n\n", cutoff.Format("2006-01-02"))

	artifacts, err := listArtifacts(cfg.Output.Dir)
	if err != nil {
		return err
	}

	var expired []artifactInfo
	for _, a := range artifacts {
		if cfg.ShouldExpire(time.Since(a.SavedAt)) {
			expired = append(expired, a)
		}
	}
	if len(expired) == 0 {
		fmt.Println("No test case files to prune")
		return nil
	}

	fmt.Printf("Files to prune (%d):\n\n", len(expired))
	for _, a := range expired {
		fmt.Printf("  %s\n", a.Path)
		fmt.Printf("    Age:    %s\n", formatDuration(time.Since(a.SavedAt)))
	}
	fmt.Println()

	if pruneDryRun && !pruneForce {
		fmt.Println("This is a dry run. Use --force to actually delete the files.")
		return nil
	}

	removed, err := export.New(cfg, nil).Prune(cfg.ShouldExpire)
	for _, path := range removed {
		fmt.Printf("  ✓ Deleted %s\n", path)
	}
	if err != nil {
		return err
	}
	fmt.Printf("\n✓ Pruned %d file(s)\n", len(removed))
	return nil
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days == 0 {
		return "< 1 day"
	}
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
