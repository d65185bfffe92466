package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rfprag/internal/domain"
)

var (
	draftProject int64
	draftJSON    bool
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Draft a full RFP response for a project",
	Long: `Generate every configured section in order. Each section retrieves its
own context and sees a summary of the sections written before it. The
draft is written as Markdown under draft.output_dir.

A section the model rejects aborts the draft and names the section.

Examples:
  rfprag draft -p 12
  rfprag draft -p 12 --json`,
	RunE: runDraft,
}

func init() {
	rootCmd.AddCommand(draftCmd)
	draftCmd.Flags().Int64VarP(&draftProject, "project", "p", 0, "project ID (required)")
	draftCmd.Flags().BoolVar(&draftJSON, "json", false, "output sections as JSON")
	draftCmd.MarkFlagRequired("project")
}

func runDraft(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	result, err := a.generate.DraftAndWrite(cmd.Context(), draftProject)
	if err != nil {
		var rejected *domain.GenerationRejectedError
		if errors.As(err, &rejected) {
			return fmt.Errorf("draft aborted at section %q: %w", rejected.Section, err)
		}
		return fmt.Errorf("draft failed: %w", err)
	}

	if draftJSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Draft for %s", projectLabel(result.Project))))
	for i, s := range result.Sections {
		grounding := fmt.Sprintf("%d passages, %d tokens", len(s.Context.Chunks), s.Context.UsedTokens)
		if s.Context.Empty() {
			grounding = warnStyle.Render("no context")
		}
		fmt.Printf("  %d. %s %s\n", i+1, sectionStyle.Render(s.Name), mutedStyle.Render("("+grounding+")"))
	}
	fmt.Println()
	if result.Path != "" {
		fmt.Printf("Written to: %s\n", result.Path)
	}
	fmt.Printf("Completed in %s\n", formatDuration(time.Since(start)))
	return nil
}

func projectLabel(p domain.Project) string {
	if p.Name != "" {
		return fmt.Sprintf("%s (project %d)", p.Name, p.ID)
	}
	return fmt.Sprintf("project %d", p.ID)
}
