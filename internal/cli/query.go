package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryProject int64
	queryText    string
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Answer a question from a project's documents",
	Long: `Retrieve the most relevant passages of a project and ask the model to
answer from them. When nothing relevant is indexed the model is told so and
the answer is marked as ungrounded.

Examples:
  rfprag query -p 12 -q "What is the delivery timeline?"
  rfprag query -p 12 -q "Which certifications are required?" --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().Int64VarP(&queryProject, "project", "p", 0, "project ID (required)")
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question (required)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("project")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.generate.Answer(cmd.Context(), queryProject, queryText)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		output, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(labelStyle.Render("Q: ") + answer.Question)
	fmt.Println()
	fmt.Println(answer.Answer)
	if !answer.Grounded {
		fmt.Println()
		fmt.Println(warnStyle.Render("No indexed passage matched this question; the answer is not grounded in project documents."))
	}
	return nil
}
