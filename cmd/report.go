package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <template>",
	Short: "Generate pre-defined reports",
	Long: `Generate formatted reports using pre-defined templates.

Available templates:
  daily   - Knowledge base summary plus the test case files saved today

Examples:
  trace report daily`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	template := args[0]

	switch template {
	case "daily":
		return generateDailyReport(cmd)
	default:
		return fmt.Errorf("unknown report template: %s (available: daily)", template)
	}
}

func generateDailyReport(cmd *cobra.Command) error {
	fmt.Println("Daily Report")
	fmt.Println("════════════")
	fmt.Println()

	fmt.Println("Summary")
	fmt.Println("───────")
	oldStatsJSON, oldStatsToon := statsJSON, statsToon
	statsJSON, statsToon = false, false
	err := runStats(cmd, nil)
	statsJSON, statsToon = oldStatsJSON, oldStatsToon
	if err != nil {
		fmt.Printf("(knowledge base unavailable: %v)\n", err)
	}

	fmt.Println()
	fmt.Println("Today's Test Cases")
	fmt.Println("──────────────────")

	oldToday, oldSince := listToday, listSince
	oldJSON, oldToon := listJSON, listToon
	listToday, listSince = true, ""
	listJSON, listToon = false, false

	err = runList(cmd, nil)

	listToday, listSince = oldToday, oldSince
	listJSON, listToon = oldJSON, oldToon

	return err
}
