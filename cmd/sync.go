package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pders01/trace/internal/models"
)

var (
	syncYes   bool
	syncWatch bool
	syncJSON  bool
	syncToon  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Bring the knowledge base in line with the corpus folders",
	Long: `Scan the corpus folders and re-index only what changed since the last sync:
  - new documents are chunked, embedded and added
  - changed documents replace their previous chunks
  - documents that disappeared are removed after confirmation

A missing or unreadable folder never counts as "everything was deleted".

Examples:
  trace sync
  trace sync --yes          # approve removals without asking
  trace sync --watch        # keep syncing as files change
  trace sync --json`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false, "Remove deleted documents from the index without asking")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "Keep running and sync whenever the corpus changes")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "Output as JSON")
	syncCmd.Flags().BoolVar(&syncToon, "toon", false, "Output in LLM-friendly toon format")
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.syncEngine(syncYes)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if syncWatch {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintln(os.Stderr, "Watching corpus folders, press Ctrl+C to stop")
		return engine.Watch(ctx, a.cfg.Sync.WatchDebounce, func(report models.SyncReport, err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
				return
			}
			if perr := printSyncReport(report); perr != nil {
				fmt.Fprintln(os.Stderr, perr)
			}
		})
	}

	report, err := engine.Synchronize(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return printSyncReport(report)
}

func printSyncReport(report models.SyncReport) error {
	if done, err := printStructured(report, syncJSON, syncToon); done {
		return err
	}

	for _, root := range report.MissingRoots {
		fmt.Printf("⚠ Corpus folder missing: %s (its documents stay indexed)\n", root)
	}
	if report.NoOp {
		fmt.Printf("✓ Knowledge base up to date (%d document(s))\n", report.Unchanged)
		return nil
	}

	fmt.Printf("✓ Synced in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Printf("  Added:     %d\n", report.Added)
	fmt.Printf("  Updated:   %d\n", report.Updated)
	fmt.Printf("  Removed:   %d\n", report.Removed)
	fmt.Printf("  Unchanged: %d\n", report.Unchanged)
	fmt.Printf("  Chunks:    %d\n", report.Chunks)
	if report.Skipped > 0 {
		fmt.Printf("  Kept %d deleted document(s) indexed, removal was not confirmed\n", report.Skipped)
	}
	if report.PartialFailure() {
		fmt.Printf("\n%d document(s) failed and will be retried on the next sync:\n", len(report.Failed))
		for _, f := range report.Failed {
			fmt.Printf("  %s (%s): %s\n", f.SourceID, f.Stage, f.Error)
		}
	}
	return nil
}
