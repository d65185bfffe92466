package usecase

import (
	"context"
	"errors"
	"fmt"

	"rfprag/internal/domain"
)

// DraftResult is a drafted response and where it was written.
type DraftResult struct {
	Project  domain.Project            `json:"project"`
	Path     string                    `json:"path,omitempty"`
	Sections []domain.GeneratedSection `json:"sections"`
}

// Draft generates the configured sections in order. Each section is
// retrieved with its own query and prompted with a summary of the sections
// before it. The first rejected or failed section aborts the draft.
func (u *GenerateUseCase) Draft(ctx context.Context, projectID int64) ([]domain.GeneratedSection, error) {
	project, err := u.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return u.draft(ctx, project)
}

// DraftAndWrite drafts the project's response and hands it to the draft
// writer.
func (u *GenerateUseCase) DraftAndWrite(ctx context.Context, projectID int64) (DraftResult, error) {
	project, err := u.project(ctx, projectID)
	if err != nil {
		return DraftResult{}, err
	}
	sections, err := u.draft(ctx, project)
	if err != nil {
		return DraftResult{}, err
	}

	result := DraftResult{Project: project, Sections: sections}
	if u.writer == nil {
		return result, nil
	}
	path, err := u.writer.Write(ctx, project, sections)
	if err != nil {
		return result, fmt.Errorf("failed to write draft: %w", err)
	}
	result.Path = path
	u.log.Info().Int64("project_id", projectID).Str("path", path).Msg("draft written")
	return result, nil
}

func (u *GenerateUseCase) project(ctx context.Context, projectID int64) (domain.Project, error) {
	if u.projects == nil {
		return domain.Project{ID: projectID}, nil
	}
	project, err := u.projects.Project(ctx, projectID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	return project, nil
}

func (u *GenerateUseCase) draft(ctx context.Context, project domain.Project) ([]domain.GeneratedSection, error) {
	if len(u.opts.Sections) == 0 {
		return nil, fmt.Errorf("%w: no draft sections configured", domain.ErrInvalidInput)
	}

	log := u.log.Project(project.ID)
	sections := make([]domain.GeneratedSection, 0, len(u.opts.Sections))

	for i, def := range u.opts.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rc, err := u.retriever.Retrieve(ctx, project.ID, def.Query, u.opts.TokenBudget)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", def.Name, err)
		}

		messages := BuildSectionPrompt(project, def, rc, runningSummary(sections, u.opts.SummaryTokens))
		text, err := u.complete(ctx, messages, def.Name, def.Query)
		if err != nil {
			var rejected *domain.GenerationRejectedError
			if errors.As(err, &rejected) {
				return nil, err
			}
			return nil, fmt.Errorf("section %q: %w", def.Name, err)
		}

		sections = append(sections, domain.GeneratedSection{
			Name:    def.Name,
			Prompt:  promptText(messages),
			Context: rc,
			Text:    text,
		})
		u.metrics.SectionGenerated()
		log.Info().
			Int("section", i+1).
			Int("of", len(u.opts.Sections)).
			Str("name", def.Name).
			Int("context_chunks", len(rc.Chunks)).
			Msg("section generated")
	}

	return sections, nil
}
