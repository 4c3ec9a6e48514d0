package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/trace/internal/corpus"
	"github.com/pders01/trace/internal/syncstate"
)

var metaCmd = &cobra.Command{
	Use:   "meta <source>",
	Short: "Show sync details for one document",
	Long: `Display what the knowledge base knows about a corpus document: the
fingerprint recorded at the last sync and how many chunks are indexed.

Example:
  trace meta data/inputs/ApplicationDocuments/login.md`,
	Args: cobra.ExactArgs(1),
	RunE: runMeta,
}

func init() {
	rootCmd.AddCommand(metaCmd)
}

func runMeta(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id := corpus.SourceID(args[0])

	state, err := syncstate.Load(a.cfg.Sync.StateFile)
	if err != nil {
		return err
	}
	fingerprint, tracked := state.Sources[id]

	chunks := -1
	if a.store != nil {
		stats, err := a.store.Stats(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("failed to read index: %w", err)
		}
		chunks = stats.BySource[id]
	}

	if !tracked && chunks <= 0 {
		return fmt.Errorf("document is not indexed: %s", id)
	}

	fmt.Printf("Source:      %s\n", id)
	if tracked {
		fmt.Printf("Fingerprint: %s\n", fingerprint)
	} else {
		fmt.Println("Fingerprint: (not recorded, will be re-indexed on next sync)")
	}
	if chunks >= 0 {
		fmt.Printf("Chunks:      %d\n", chunks)
	}
	if !state.UpdatedAt.IsZero() {
		fmt.Printf("Last sync:   %s\n", state.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
