package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	packProject int64
	packQuery   string
	packBudget  int
	packOutput  string
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Retrieve token-bounded context for a query",
	Long: `Search a project's chunks and pack the best matches into a context
that fits within a token budget. Chunks that do not fit are skipped, never
truncated. No model call is made.

Examples:
  rfprag pack -p 12 -q "security requirements"
  rfprag pack -p 12 -q "pricing model" -b 800 -o context.json`,
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().Int64VarP(&packProject, "project", "p", 0, "project ID (required)")
	packCmd.Flags().StringVarP(&packQuery, "query", "q", "", "search query (required)")
	packCmd.Flags().IntVarP(&packBudget, "budget", "b", 0, "token budget (default from config)")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "output file (default: stdout)")
	packCmd.MarkFlagRequired("project")
	packCmd.MarkFlagRequired("query")
}

func runPack(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	budget := a.cfg.Retrieve.TokenBudget
	if packBudget > 0 {
		budget = packBudget
	}

	packed, err := a.retrieve.Retrieve(cmd.Context(), packProject, packQuery, budget)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if packed.Empty() {
		fmt.Fprintln(os.Stderr, "No relevant content found.")
	}

	output, err := json.MarshalIndent(packed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	if packOutput != "" {
		if err := os.WriteFile(packOutput, output, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("Context packed to: %s\n", packOutput)
		fmt.Printf("  Chunks: %d\n", len(packed.Chunks))
		fmt.Printf("  Tokens: %d / %d\n", packed.UsedTokens, packed.BudgetTokens)
	} else {
		fmt.Println(string(output))
	}

	return nil
}
