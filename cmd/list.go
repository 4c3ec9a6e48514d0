package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	listToday bool
	listSince string
	listJSON  bool
	listToon  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved test case files",
	Long: `List the test case files written to the output folder, newest first.

Examples:
  trace list
  trace list --today
  trace list --since 2025-10-01
  trace list --json`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listToday, "today", false, "Show only files saved today")
	listCmd.Flags().StringVar(&listSince, "since", "", "Show files saved since date (YYYY-MM-DD)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().BoolVar(&listToon, "toon", false, "Output in LLM-friendly toon format")
}

type artifactInfo struct {
	Path    string    `json:"path"`
	Format  string    `json:"format"`
	Size    int64     `json:"size"`
	SavedAt time.Time `json:"saved_at"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var since time.Time
	if listSince != "" {
		since, err = time.ParseInLocation("2006-01-02", listSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since date format (use YYYY-MM-DD): %w", err)
		}
	}

	artifacts, err := listArtifacts(cfg.Output.Dir)
	if err != nil {
		return err
	}

	today := time.Now().Format("2006-01-02")
	filtered := artifacts[:0]
	for _, a := range artifacts {
		if listToday && a.SavedAt.Format("2006-01-02") != today {
			continue
		}
		if !since.IsZero() && a.SavedAt.Before(since) {
			continue
		}
		filtered = append(filtered, a)
	}

	if done, err := printStructured(filtered, listJSON, listToon); done {
		return err
	}

	if len(filtered) == 0 {
		fmt.Println("No saved test cases found")
		return nil
	}

	fmt.Printf("Found %d file(s):\n\n", len(filtered))
	for _, a := range filtered {
		fmt.Printf("  %s\n", a.Path)
		fmt.Printf("    Format:  %s\n", a.Format)
		fmt.Printf("    Saved:   %s\n", a.SavedAt.Format("2006-01-02 15:04"))
		fmt.Printf("    Size:    %d bytes\n", a.Size)
		fmt.Println()
	}
	return nil
}

// listArtifacts returns the saved test case files in dir, newest first
func listArtifacts(dir string) ([]artifactInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var out []artifactInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "test_cases_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to stat %s: %v\n", entry.Name(), err)
			continue
		}
		out = append(out, artifactInfo{
			Path:    filepath.Join(dir, entry.Name()),
			Format:  strings.TrimPrefix(filepath.Ext(entry.Name()), "."),
			Size:    info.Size(),
			SavedAt: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].SavedAt.After(out[j].SavedAt)
	})
	return out, nil
}
