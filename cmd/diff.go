package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/corpus"
	"github.com/pders01/trace/internal/syncer"
	"github.com/pders01/trace/internal/syncstate"
)

var (
	diffJSON bool
	diffToon bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show what the next sync would change",
	Long: `Compare the corpus folders with the last sync without touching the index:
  - documents that would be added
  - documents whose content changed
  - documents that would be removed
  - folders that are missing and therefore protected

Example:
  trace diff
  trace diff --json`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "Output as JSON")
	diffCmd.Flags().BoolVar(&diffToon, "toon", false, "Output in LLM-friendly toon format")
}

type pendingChanges struct {
	Added        []string          `json:"added"`
	Changed      []string          `json:"changed"`
	Removed      []string          `json:"removed"`
	Unchanged    int               `json:"unchanged"`
	MissingRoots []string          `json:"missing_roots,omitempty"`
	Unreadable   map[string]string `json:"unreadable,omitempty"`
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	changes, err := pendingDiff(commandContext(cmd), cfg)
	if err != nil {
		return err
	}

	if done, err := printStructured(changes, diffJSON, diffToon); done {
		return err
	}

	for _, root := range changes.MissingRoots {
		fmt.Printf("⚠ Corpus folder missing: %s (its documents are protected)\n", root)
	}
	for path, reason := range changes.Unreadable {
		fmt.Printf("⚠ Unreadable: %s (%s)\n", path, reason)
	}

	if len(changes.Added)+len(changes.Changed)+len(changes.Removed) == 0 {
		fmt.Printf("Knowledge base is up to date (%d document(s))\n", changes.Unchanged)
		return nil
	}

	printSection := func(title, marker string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Printf("%s (%d):\n", title, len(ids))
		for _, id := range ids {
			fmt.Printf("  %s %s\n", marker, id)
		}
		fmt.Println()
	}
	printSection("Added", "+", changes.Added)
	printSection("Changed", "~", changes.Changed)
	printSection("Removed", "-", changes.Removed)
	fmt.Printf("Unchanged: %d\n", changes.Unchanged)
	fmt.Println("\nRun 'trace sync' to apply.")
	return nil
}

// pendingDiff compares the corpus on disk with the saved sync state the same
// way a sync would, without embedding or writing anything
func pendingDiff(ctx context.Context, cfg *config.Config) (pendingChanges, error) {
	scanner := corpus.NewScanner(cfg.Corpus.Roots, cfg.Corpus.Extensions, cfg.Sync.Fingerprint)
	scan, err := scanner.Scan(ctx)
	if err != nil {
		return pendingChanges{}, fmt.Errorf("failed to scan corpus: %w", err)
	}
	state, err := syncstate.Load(cfg.Sync.StateFile)
	if err != nil {
		return pendingChanges{}, err
	}

	changes := pendingChanges{MissingRoots: scan.MissingRoots()}
	if len(scan.Unreadable) > 0 {
		changes.Unreadable = scan.Unreadable
	}
	if len(scan.Available()) == 0 {
		changes.Unchanged = len(state.Sources)
		return changes, nil
	}
	delta := syncer.ComputeDelta(scan.Files, state.Sources, scan.Protects)
	changes.Added = delta.Added
	changes.Changed = delta.Changed
	changes.Removed = delta.Removed
	changes.Unchanged = delta.Unchanged
	return changes, nil
}
