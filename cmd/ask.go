package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askRaw  bool
	askSync bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the knowledge base",
	Long: `Answer a question using only the indexed documents.

The knowledge base is synced first. When nothing relevant is indexed the
answer says so instead of guessing.

Examples:
  trace ask "What is the minimum password length?"
  trace ask --raw "lockout policy"     # print the matching passages`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Print the retrieved passages instead of a composed answer")
	askCmd.Flags().BoolVar(&askSync, "sync", true, "Sync the knowledge base before answering")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := commandContext(cmd)
	if askSync && a.store != nil {
		engine, err := a.syncEngine(false)
		if err != nil {
			return err
		}
		if _, err := engine.Synchronize(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Warn("sync failed, answering from the existing index", "error", err)
		}
	}

	agent, err := a.retrieval(ctx)
	if err != nil {
		return err
	}

	var answer string
	if askRaw {
		answer, err = agent.Ask(ctx, question)
	} else {
		answer, err = agent.Answer(ctx, question)
	}
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	fmt.Println(answer)
	return nil
}
