package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"rfprag/internal/tui"
)

var askProject int64

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask questions about a project interactively",
	Long: `Open a terminal session that answers questions from one project's
indexed documents.

Examples:
  rfprag ask -p 12`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().Int64VarP(&askProject, "project", "p", 0, "project ID (required)")
	askCmd.MarkFlagRequired("project")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	title := fmt.Sprintf("rfprag · project %d", askProject)
	if project, err := a.source.Project(ctx, askProject); err == nil && project.Name != "" {
		title = fmt.Sprintf("rfprag · %s", project.Name)
	}

	program := tea.NewProgram(tui.New(ctx, a.generate, askProject, title), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("interactive session failed: %w", err)
	}
	return nil
}
