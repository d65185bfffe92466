package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rfprag/internal/domain"
	"rfprag/internal/usecase"
)

var (
	promptProject int64
	promptQuery   string
	promptSection string
	promptJSON    bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Show the prompt a question or draft section would send",
	Long: `Retrieve context and print the exact messages that would be sent to the
model, without calling it. Use --query for a question prompt or --section
for one configured draft section.

Examples:
  rfprag prompt -p 12 -q "What is the delivery timeline?"
  rfprag prompt -p 12 -s "Technical Approach" --json`,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().Int64VarP(&promptProject, "project", "p", 0, "project ID (required)")
	promptCmd.Flags().StringVarP(&promptQuery, "query", "q", "", "question to build an answer prompt for")
	promptCmd.Flags().StringVarP(&promptSection, "section", "s", "", "draft section to build a prompt for")
	promptCmd.Flags().BoolVar(&promptJSON, "json", false, "output messages as JSON")
	promptCmd.MarkFlagRequired("project")
	promptCmd.MarkFlagsMutuallyExclusive("query", "section")
	promptCmd.MarkFlagsOneRequired("query", "section")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var messages []domain.ChatMessage

	if promptQuery != "" {
		rc, err := a.retrieve.Retrieve(ctx, promptProject, promptQuery, a.cfg.Retrieve.TokenBudget)
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		messages = usecase.BuildAnswerPrompt(promptQuery, rc)
	} else {
		def, ok := findSection(a.cfg.Draft.Sections, promptSection)
		if !ok {
			return fmt.Errorf("unknown section %q", promptSection)
		}
		project, err := a.source.Project(ctx, promptProject)
		if err != nil {
			return err
		}
		rc, err := a.retrieve.Retrieve(ctx, promptProject, def.Query, a.cfg.Retrieve.TokenBudget)
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		messages = usecase.BuildSectionPrompt(project, def, rc, "")
	}

	if promptJSON {
		output, err := json.MarshalIndent(messages, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	for i, m := range messages {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(labelStyle.Render("[" + m.Role + "]"))
		fmt.Println(m.Content)
	}
	return nil
}

func findSection(sections []domain.SectionDefinition, name string) (domain.SectionDefinition, bool) {
	for _, s := range sections {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return domain.SectionDefinition{}, false
}
