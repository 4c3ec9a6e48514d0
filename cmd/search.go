package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/trace/internal/models"
	"github.com/pders01/trace/internal/store"
)

var (
	searchTopK int
	searchJSON bool
	searchToon bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base by semantic similarity",
	Long: `Embed the query and show the closest indexed chunks with their scores.

The index is searched as it is; run 'trace sync' first to pick up changes.

Example:
  trace search "password reset rules"
  trace search -k 5 "TC_001"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVarP(&searchTopK, "top", "k", 0, "Number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
	searchCmd.Flags().BoolVar(&searchToon, "toon", false, "Output in LLM-friendly toon format")
}

type searchHit struct {
	Source string  `json:"source"`
	Chunk  int     `json:"chunk"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireStore(); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	research, err := a.retrieval(ctx)
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	hits, err := research.Search(ctx, query, searchTopK)
	if err != nil {
		if errors.Is(err, store.ErrIndexUnavailable) {
			return fmt.Errorf("knowledge base cannot be searched: %w", err)
		}
		return err
	}

	results := toSearchHits(hits)
	if done, err := printStructured(results, searchJSON, searchToon); done {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No indexed documents match the query")
		return nil
	}

	fmt.Printf("Found %d match(es):\n\n", len(results))
	for i, r := range results {
		fmt.Printf("%d. %s #%d [score: %.3f]\n", i+1, r.Source, r.Chunk, r.Score)
		text := strings.Join(strings.Fields(r.Text), " ")
		if len([]rune(text)) > 160 {
			text = string([]rune(text)[:160]) + "..."
		}
		fmt.Printf("   %s\n\n", text)
	}
	return nil
}

func toSearchHits(hits []models.ScoredRecord) []searchHit {
	out := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, searchHit{
			Source: h.SourceID,
			Chunk:  h.ChunkIndex,
			Score:  h.Score,
			Text:   h.Text,
		})
	}
	return out
}
