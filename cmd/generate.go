package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/trace/internal/models"
	"github.com/pders01/trace/internal/workflow"
)

var (
	generateFile      string
	generateKeepDraft bool
	generateYes       bool
	generateJSON      bool
	generateToon      bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [text]",
	Short: "Generate reviewed test cases from a user story",
	Long: `Run the full workflow on a feature description:
  1. sync the knowledge base
  2. split the input into context and scenarios
  3. stop if an existing test case already covers a scenario
  4. draft test cases and have them reviewed, refining on feedback
  5. save the approved test cases

Short questions are answered from the knowledge base instead.

Scenarios can point at an existing test case to update it:
  1. Lockout after three attempts [TC_001]
  2. Password reset (ID: TC-014)

Examples:
  trace generate --file story.md
  cat story.md | trace generate
  trace generate "Feature: Login. Scenarios: 1. Valid login 2. Lockout"`,
	Args: cobra.ArbitraryArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateFile, "file", "f", "", "Read the user story from a file")
	generateCmd.Flags().BoolVar(&generateKeepDraft, "keep-draft", false, "Print the last draft when review does not approve it")
	generateCmd.Flags().BoolVarP(&generateYes, "yes", "y", false, "Approve index removals during the sync step")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "Output the result as JSON")
	generateCmd.Flags().BoolVar(&generateToon, "toon", false, "Output the result in LLM-friendly toon format")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	input, err := readInput(args, os.Stdin)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := commandContext(cmd)
	orch, err := a.orchestrator(ctx, generateYes)
	if err != nil {
		return err
	}
	if !generateJSON && !generateToon {
		orch.Events = printEvent
	}

	result, err := orch.Run(ctx, input)
	if done, perr := printStructured(result, generateJSON, generateToon); done {
		if perr != nil {
			return perr
		}
		return err
	}
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

// readInput takes the story from --file, the arguments, or piped stdin
func readInput(args []string, stdin io.Reader) (string, error) {
	switch {
	case generateFile != "":
		data, err := os.ReadFile(generateFile)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		if f, ok := stdin.(*os.File); ok {
			if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
				return "", fmt.Errorf("no input: pass text, --file, or pipe a story on stdin")
			}
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
}

func printEvent(e workflow.Event) {
	switch e.State {
	case workflow.StateSyncing:
		fmt.Fprintln(os.Stderr, "→ Syncing knowledge base")
	case workflow.StateResearch:
		fmt.Fprintln(os.Stderr, "→ Researching answer")
	case workflow.StateSplitting:
		fmt.Fprintln(os.Stderr, "→ Analyzing input")
	case workflow.StateDuplicate:
		fmt.Fprintf(os.Stderr, "→ Checking existing coverage: %s\n", e.Detail)
	case workflow.StateGenerating:
		fmt.Fprintf(os.Stderr, "→ Attempt %d: drafting test cases\n", e.Attempt)
	case workflow.StateReviewing:
		fmt.Fprintf(os.Stderr, "→ Attempt %d: reviewing draft\n", e.Attempt)
	case workflow.StateSaving:
		fmt.Fprintln(os.Stderr, "→ Saving test cases")
	}
}

func printResult(result models.WorkflowResult) {
	switch result.Outcome {
	case models.OutcomeAnswered:
		fmt.Println(result.Answer)
	case models.OutcomeCompleted:
		fmt.Printf("✓ %s\n", result.Summary())
		if result.Artifact != nil && result.Artifact.Location != "" {
			fmt.Printf("  Published to %s\n", result.Artifact.Location)
		}
	case models.OutcomeExhausted:
		fmt.Printf("✗ %s\n", result.Summary())
		if generateKeepDraft && result.Draft != nil {
			fmt.Println()
			fmt.Println("Last draft:")
			fmt.Println(result.Draft.Text())
		}
	default:
		fmt.Printf("✗ %s\n", result.Summary())
	}
}
