// Package fs serves project documents from a directory tree laid out as
// <root>/<project id>/..., one directory per project.
package fs

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rfprag/internal/domain"
	"rfprag/internal/port"
)

// ProjectFile is the optional metadata file in a project directory.
const ProjectFile = "project.yaml"

type projectMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	DueDate     string `yaml:"due_date"`
}

var extensionTypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
	".html":     "text/html",
	".htm":      "text/html",
	".json":     "application/json",
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DetectMIMEType maps a file name to a MIME type, defaulting to
// application/octet-stream.
func DetectMIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "application/octet-stream"
}

// DirectorySource implements port.DocumentSource over a project tree.
type DirectorySource struct {
	root   string
	walker *Walker
}

var _ port.DocumentSource = (*DirectorySource)(nil)

func NewDirectorySource(root string, walker *Walker) *DirectorySource {
	return &DirectorySource{root: root, walker: walker}
}

// ProjectDir returns the directory holding a project's documents.
func (s *DirectorySource) ProjectDir(projectID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(projectID, 10))
}

func (s *DirectorySource) projectDir(projectID int64) (string, error) {
	dir := s.ProjectDir(projectID)
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return "", fmt.Errorf("%w: %d", domain.ErrProjectNotFound, projectID)
	}
	if err != nil {
		return "", err
	}
	return dir, nil
}

func (s *DirectorySource) Project(ctx context.Context, projectID int64) (domain.Project, error) {
	dir, err := s.projectDir(projectID)
	if err != nil {
		return domain.Project{}, err
	}

	project := domain.Project{ID: projectID, Name: fmt.Sprintf("Project %d", projectID)}
	data, err := os.ReadFile(filepath.Join(dir, ProjectFile))
	if errors.Is(err, os.ErrNotExist) {
		return project, nil
	}
	if err != nil {
		return domain.Project{}, err
	}

	var meta projectMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return domain.Project{}, fmt.Errorf("invalid %s for project %d: %w", ProjectFile, projectID, err)
	}
	if meta.Name != "" {
		project.Name = meta.Name
	}
	project.Description = meta.Description
	if meta.DueDate != "" {
		due, err := time.Parse("2006-01-02", meta.DueDate)
		if err != nil {
			return domain.Project{}, fmt.Errorf("invalid due_date for project %d: %w", projectID, err)
		}
		project.DueDate = due
	}
	return project, nil
}

func (s *DirectorySource) DocumentsForProject(ctx context.Context, projectID int64) ([]domain.SourceDocument, error) {
	dir, err := s.projectDir(projectID)
	if err != nil {
		return nil, err
	}

	files, err := s.walker.Walk(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to walk project %d: %w", projectID, err)
	}

	docs := make([]domain.SourceDocument, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.RelPath == ProjectFile {
			continue
		}
		doc := domain.SourceDocument{
			ID:       f.RelPath,
			Name:     filepath.Base(f.Path),
			MIMEType: DetectMIMEType(f.Path),
			ModTime:  f.ModTime,
		}
		doc.Blob, doc.ReadErr = os.ReadFile(f.Path)
		docs = append(docs, doc)
	}
	return docs, nil
}

// Projects lists the numeric project directories under the root.
func (s *DirectorySource) Projects() ([]int64, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if id, err := strconv.ParseInt(e.Name(), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
