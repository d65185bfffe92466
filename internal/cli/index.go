package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rfprag/internal/adapter/fs"
	"rfprag/internal/domain"
	"rfprag/internal/usecase"
)

var (
	indexProject  int64
	indexAll      bool
	indexWatch    bool
	indexJSON     bool
	indexQuiet    bool
	indexParallel int

	outputMu sync.Mutex
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a project's documents",
	Long: `Extract, chunk and embed every document of a project and replace its
previous chunks in the index. Documents removed from the project directory
are dropped from the index. Documents that cannot be read are reported and
skipped.

Examples:
  rfprag index --project 12           # Index project 12
  rfprag index --all                  # Index every project under sources.root
  rfprag index --all --parallel 4     # Index up to four projects at once
  rfprag index --project 12 --watch   # Re-index whenever files change`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().Int64VarP(&indexProject, "project", "p", 0, "project ID")
	indexCmd.Flags().BoolVar(&indexAll, "all", false, "index every project directory")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep running and re-index on file changes")
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "output results as JSON")
	indexCmd.Flags().BoolVar(&indexQuiet, "quiet", false, "hide the progress bar")
	indexCmd.Flags().IntVar(&indexParallel, "parallel", 1, "projects indexed concurrently with --all")
	indexCmd.MarkFlagsMutuallyExclusive("project", "all")
	indexCmd.MarkFlagsMutuallyExclusive("all", "watch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	if !indexAll && !cmd.Flags().Changed("project") {
		return errors.New("either --project or --all is required")
	}

	source := newSource(GetConfig(), GetRootDir())
	projects := []int64{indexProject}
	if indexAll {
		var err error
		projects, err = source.Projects()
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}
		if len(projects) == 0 {
			fmt.Fprintln(os.Stderr, "No project directories found.")
			return nil
		}
	}

	ctx := cmd.Context()
	if err := indexProjects(ctx, projects); err != nil {
		return err
	}

	if !indexWatch {
		return nil
	}

	// The store is reopened for every run so other commands can use the
	// index while the watch is idle.
	dir := source.ProjectDir(indexProject)
	fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl+C to stop)...\n", dir)
	return fs.Watch(ctx, dir, 2*time.Second, func(ctx context.Context) error {
		err := indexProjects(ctx, []int64{indexProject})
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Int64("project_id", indexProject).Msg("re-index failed, waiting for the next change")
			return nil
		}
		return err
	})
}

// indexProjects indexes every project with at most --parallel jobs in
// flight. A failing project never cancels the others; all failures are
// reported together once every project has run.
func indexProjects(ctx context.Context, projects []int64) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	quiet := indexQuiet || indexParallel > 1

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(max(1, indexParallel))
	for _, id := range projects {
		g.Go(func() error {
			if err := indexOnce(ctx, a, id, quiet); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// insertResult mirrors the response of the original ingestion endpoint.
type insertResult struct {
	ProjectID int64 `json:"project_id"`
	domain.IngestResult
}

func indexOnce(ctx context.Context, a *app, projectID int64, quiet bool) error {
	progress, finish := newIngestProgress(projectID, quiet)
	result, err := a.ingest.Ingest(ctx, projectID, progress)
	finish()
	if err != nil {
		return fmt.Errorf("indexing project %d failed: %w", projectID, err)
	}

	outputMu.Lock()
	defer outputMu.Unlock()

	if indexJSON {
		out, err := json.MarshalIndent(insertResult{ProjectID: projectID, IngestResult: result}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("\nIndexing complete for project %d:\n", projectID)
	fmt.Printf("  Documents processed: %d\n", result.DocumentsProcessed)
	fmt.Printf("  Documents failed:    %d\n", result.DocumentsFailed)
	fmt.Printf("  Documents removed:   %d\n", result.DocumentsRemoved)
	fmt.Printf("  Chunks inserted:     %d\n", result.ChunksInserted)

	if len(result.Failures) > 0 {
		fmt.Printf("\nSkipped documents:\n")
		for _, f := range result.Failures {
			fmt.Printf("  - %s: %s\n", f.DocumentID, f.Reason)
		}
	}
	return nil
}

// newIngestProgress returns a progress callback drawing a bar on stderr
// and a func that tears it down.
func newIngestProgress(projectID int64, quiet bool) (usecase.ProgressFunc, func()) {
	if quiet || indexJSON {
		return nil, func() {}
	}

	var (
		bar       *progressbar.ProgressBar
		mu        sync.Mutex
		startTime time.Time
	)

	progress := func(job domain.IngestionJob) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			if job.DocumentsTotal == 0 {
				return
			}
			startTime = time.Now()
			bar = progressbar.NewOptions(job.DocumentsTotal,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription(fmt.Sprintf("[cyan]Project %d[reset]", projectID)),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
		}

		done := job.DocumentsProcessed + job.DocumentsFailed
		_ = bar.Set(done)

		if done > 0 && done < job.DocumentsTotal {
			rate := float64(done) / time.Since(startTime).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(job.DocumentsTotal-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Project %d[reset] %s ETA: %s", projectID, job.State, formatDuration(eta)))
			}
		}
	}

	finish := func() {
		mu.Lock()
		defer mu.Unlock()
		if bar != nil {
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
		}
	}
	return progress, finish
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
