package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rfprag/internal/domain"
)

var (
	statusProject int64
	statusJobs    int
	statusJSON    bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index contents and recent ingestion jobs",
	Long: `Show how many documents and chunks are indexed per project, together
with the most recent ingestion jobs.

Examples:
  rfprag status
  rfprag status -p 12 --jobs 5 --json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Int64VarP(&statusProject, "project", "p", 0, "limit to one project")
	statusCmd.Flags().IntVar(&statusJobs, "jobs", 1, "number of recent jobs to show per project")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

type projectStatus struct {
	domain.IndexStats
	Jobs []domain.IngestionJob `json:"jobs,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	var ids []int64
	if cmd.Flags().Changed("project") {
		ids = []int64{statusProject}
	} else {
		seen := make(map[int64]bool)
		for _, id := range a.index.Projects() {
			seen[id] = true
		}
		if dirs, err := a.source.Projects(); err == nil {
			for _, id := range dirs {
				seen[id] = true
			}
		}
		for id := range seen {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	statuses := make([]projectStatus, 0, len(ids))
	for _, id := range ids {
		jobs, err := a.store.Jobs(id, statusJobs)
		if err != nil {
			return fmt.Errorf("failed to read jobs for project %d: %w", id, err)
		}
		mets.SetIndexChunks(id, a.index.Count(id))
		statuses = append(statuses, projectStatus{IndexStats: a.index.Stats(id), Jobs: jobs})
	}

	if statusJSON {
		output, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(statuses) == 0 {
		fmt.Println("No projects indexed yet. Run 'rfprag index --all'.")
		return nil
	}

	fmt.Println(titleStyle.Render("Index status"))
	fmt.Printf("  Embedding: %s (%d dims)\n", a.embedder.ModelName(), a.embedder.Dimension())
	fmt.Println()
	for _, s := range statuses {
		fmt.Printf("%s  %d documents, %d chunks\n", sectionStyle.Render(fmt.Sprintf("Project %d", s.ProjectID)), s.Documents, s.Chunks)
		if len(s.Jobs) == 0 {
			fmt.Println(mutedStyle.Render("  never indexed"))
			continue
		}
		for _, j := range s.Jobs {
			line := fmt.Sprintf("  %s (%s)  %-9s  processed %d, failed %d, removed %d, chunks %d",
				j.StartedAt.Local().Format(time.DateTime), humanize.Time(j.StartedAt), j.State,
				j.DocumentsProcessed, j.DocumentsFailed, j.DocumentsRemoved, j.ChunksInserted)
			if j.State == domain.JobFailed {
				line = warnStyle.Render(line + "  (" + j.Error + ")")
			}
			fmt.Println(line)
		}
	}
	return nil
}
