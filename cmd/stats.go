package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pders01/trace/internal/syncstate"
)

var (
	statsJSON bool
	statsToon bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	Long: `Display statistics about the knowledge base including:
  - Indexed documents and chunks
  - Embedding dimensions
  - Documents tracked by the last sync
  - Largest documents by chunk count

Examples:
  trace stats
  trace stats --json
  trace stats --toon`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	statsCmd.Flags().BoolVar(&statsToon, "toon", false, "Output in LLM-friendly toon format")
}

type indexStats struct {
	Sources    int          `json:"sources"`
	Chunks     int          `json:"chunks"`
	Dimensions int          `json:"dimensions"`
	Tracked    int          `json:"tracked"`
	LastSync   *time.Time   `json:"last_sync,omitempty"`
	TopSources []sourceStat `json:"top_sources"`
}

type sourceStat struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireStore(); err != nil {
		return err
	}

	idx, err := a.store.Stats(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	state, err := syncstate.Load(a.cfg.Sync.StateFile)
	if err != nil {
		return err
	}

	stats := indexStats{
		Sources:    idx.Sources,
		Chunks:     idx.Records,
		Dimensions: idx.Dimensions,
		Tracked:    len(state.Sources),
		TopSources: []sourceStat{},
	}
	if !state.UpdatedAt.IsZero() {
		t := state.UpdatedAt
		stats.LastSync = &t
	}
	for source, n := range idx.BySource {
		stats.TopSources = append(stats.TopSources, sourceStat{Source: source, Chunks: n})
	}
	sort.Slice(stats.TopSources, func(i, j int) bool {
		if stats.TopSources[i].Chunks != stats.TopSources[j].Chunks {
			return stats.TopSources[i].Chunks > stats.TopSources[j].Chunks
		}
		return stats.TopSources[i].Source < stats.TopSources[j].Source
	})

	if done, err := printStructured(stats, statsJSON, statsToon); done {
		return err
	}

	fmt.Println("Knowledge Base Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Documents:   %d\n", stats.Sources)
	fmt.Printf("Chunks:      %d\n", stats.Chunks)
	fmt.Printf("Dimensions:  %d\n", stats.Dimensions)
	fmt.Printf("Tracked:     %d\n", stats.Tracked)
	if stats.LastSync != nil {
		fmt.Printf("Last sync:   %s (%s ago)\n", stats.LastSync.Format("2006-01-02 15:04"), formatDuration(time.Since(*stats.LastSync)))
	} else {
		fmt.Println("Last sync:   never")
	}
	if stats.Tracked != stats.Sources {
		fmt.Println("\n⚠ Index and sync state disagree; the next sync will reconcile them.")
	}

	if len(stats.TopSources) > 0 {
		fmt.Println("\nLargest Documents:")
		limit := 10
		if len(stats.TopSources) < limit {
			limit = len(stats.TopSources)
		}
		for _, s := range stats.TopSources[:limit] {
			bar := ""
			for j := 0; j < s.Chunks && j < 20; j++ {
				bar += "█"
			}
			fmt.Printf("  %-40s %4d  %s\n", s.Source, s.Chunks, bar)
		}
	}
	return nil
}
