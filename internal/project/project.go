// Package project maintains the registry of repositories Meridian manages.
// Each project maps an id to a working-copy path; orchestrators resolve a
// projectId to a path through this registry.
package project

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/logging"
	"github.com/meridian-labs/meridian/internal/store"
)

// Project is one registered repository.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registry persists and resolves projects.
type Registry struct {
	fs     *store.FileStore
	logger *logging.Logger
}

// NewRegistry creates a Registry backed by the given file store.
func NewRegistry(fs *store.FileStore, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{fs: fs, logger: logger}
}

// Add registers a repository path under a new project id. The path must be
// a git working copy; the name defaults to the directory basename.
func (r *Registry) Add(ctx context.Context, path, name string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewValidationError("invalid project path").
			WithField("path").
			WithValue(path).
			WithCause(err)
	}

	if !git.NewClient(abs).IsGitRepository() {
		return nil, errors.NewGitError("register project", errors.ErrNotGitRepository).
			WithRepository(abs)
	}

	if existing, err := r.GetByPath(ctx, abs); err == nil {
		return nil, errors.NewAlreadyExistsError("project", existing.Name)
	}

	if name == "" {
		name = filepath.Base(abs)
	}

	p := &Project{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      abs,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.fs.SaveJSON(ctx, r.key(p.ID), p); err != nil {
		return nil, err
	}

	r.logger.Info("registered project", "project", p.ID, "name", p.Name, "path", p.Path)
	return p, nil
}

// Get loads a project by id.
func (r *Registry) Get(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := r.fs.LoadJSON(ctx, r.key(id), &p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NewNotFoundError("project", id).
				WithCause(errors.ErrProjectNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// GetByPath finds the project registered for an absolute path.
func (r *Registry) GetByPath(ctx context.Context, path string) (*Project, error) {
	projects, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.Path == path {
			return p, nil
		}
	}
	return nil, errors.NewNotFoundError("project", path).
		WithCause(errors.ErrProjectNotFound)
}

// List returns all registered projects sorted by name.
func (r *Registry) List(ctx context.Context) ([]*Project, error) {
	keys, err := r.fs.List(ctx, "projects")
	if err != nil {
		return nil, err
	}

	projects := make([]*Project, 0, len(keys))
	for _, key := range keys {
		var p Project
		if err := r.fs.LoadJSON(ctx, key, &p); err != nil {
			r.logger.Warn("skipping unreadable project record", "key", key, "error", err.Error())
			continue
		}
		projects = append(projects, &p)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})
	return projects, nil
}

// Remove deletes a project from the registry. The repository on disk is
// left untouched.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.fs.Delete(ctx, r.key(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NewNotFoundError("project", id).
				WithCause(errors.ErrProjectNotFound)
		}
		return err
	}
	r.logger.Info("removed project", "project", id)
	return nil
}

func (r *Registry) key(id string) string {
	return "projects/" + id + ".json"
}
