package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/gemini"
	"github.com/pders01/trace/internal/ollama"
	"github.com/pders01/trace/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that models, folders and the knowledge store are usable",
	Long: `Run the checks a workflow depends on:
  - the Ollama server answers
  - every role's model and the embedding model are pulled
  - the Gemini API key is set when Gemini is the provider
  - the corpus folders exist
  - the knowledge store opens

Example:
  trace doctor`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	Name string
	Err  error
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	results := runChecks(commandContext(cmd), cfg)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("✗ %s: %v\n", r.Name, r.Err)
			continue
		}
		fmt.Printf("✓ %s\n", r.Name)
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Println("\n✓ Everything looks good")
	return nil
}

func runChecks(ctx context.Context, cfg *config.Config) []checkResult {
	var results []checkResult

	models := []string{cfg.Embeddings.Model}
	if cfg.Provider == config.ProviderGemini {
		_, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		results = append(results, checkResult{Name: "gemini credentials", Err: err})
	} else {
		for _, role := range config.Roles {
			rc, err := cfg.ModelFor(role)
			if err != nil {
				results = append(results, checkResult{Name: "role " + role, Err: err})
				continue
			}
			models = append(models, rc.Model)
		}
	}

	if !ollama.IsAvailable(cfg.Ollama.URL) {
		results = append(results, checkResult{
			Name: "ollama at " + cfg.Ollama.URL,
			Err:  fmt.Errorf("not reachable - start it with: ollama serve"),
		})
	} else {
		results = append(results, checkResult{Name: "ollama at " + cfg.Ollama.URL})
		seen := make(map[string]bool)
		for _, model := range models {
			if seen[model] {
				continue
			}
			seen[model] = true
			results = append(results, checkResult{Name: "model " + model, Err: checkModel(ctx, cfg.Ollama.URL, model)})
		}
	}

	for _, root := range cfg.Corpus.Roots {
		var err error
		if info, statErr := os.Stat(root); statErr != nil {
			err = fmt.Errorf("missing - run: trace init")
		} else if !info.IsDir() {
			err = fmt.Errorf("not a directory")
		}
		results = append(results, checkResult{Name: "corpus folder " + root, Err: err})
	}

	st, err := store.Open(cfg.Store.Path)
	if err == nil {
		err = st.Close()
	}
	results = append(results, checkResult{Name: "knowledge store " + cfg.Store.Path, Err: err})

	return results
}

func checkModel(ctx context.Context, url, model string) error {
	client, err := ollama.NewClient(url, model)
	if err != nil {
		return err
	}
	return client.CheckModel(ctx)
}
