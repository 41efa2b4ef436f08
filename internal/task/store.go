package task

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/store"
)

// Store persists task metadata, one JSON file per task under
// tasks/<projectID>/.
type Store struct {
	fs *store.FileStore
}

// NewStore creates a task store backed by the given file store.
func NewStore(fs *store.FileStore) *Store {
	return &Store{fs: fs}
}

// Save persists a task record.
func (s *Store) Save(ctx context.Context, t *Task) error {
	if t.ID == "" || t.ProjectID == "" {
		return errors.NewValidationError("task id and project id are required").
			WithField("task")
	}
	return s.fs.SaveJSON(ctx, s.key(t.ProjectID, t.ID), t)
}

// Get loads a task by project and task id.
func (s *Store) Get(ctx context.Context, projectID, taskID string) (*Task, error) {
	var t Task
	if err := s.fs.LoadJSON(ctx, s.key(projectID, taskID), &t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NewNotFoundError("task", taskID)
		}
		return nil, err
	}
	return &t, nil
}

// List returns all tasks for a project, sorted by creation time.
func (s *Store) List(ctx context.Context, projectID string) ([]*Task, error) {
	keys, err := s.fs.List(ctx, "tasks/"+projectID)
	if err != nil {
		return nil, err
	}

	tasks := make([]*Task, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		var t Task
		if err := s.fs.LoadJSON(ctx, key, &t); err != nil {
			return nil, fmt.Errorf("loading %s: %w", key, err)
		}
		tasks = append(tasks, &t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// GetMany loads the named tasks, skipping ids with no record. Useful for
// release computation where some done tasks may predate metadata tracking.
func (s *Store) GetMany(ctx context.Context, projectID string, taskIDs []string) ([]*Task, error) {
	tasks := make([]*Task, 0, len(taskIDs))
	for _, id := range taskIDs {
		t, err := s.Get(ctx, projectID, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Delete removes a task record.
func (s *Store) Delete(ctx context.Context, projectID, taskID string) error {
	if err := s.fs.Delete(ctx, s.key(projectID, taskID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NewNotFoundError("task", taskID)
		}
		return err
	}
	return nil
}

func (s *Store) key(projectID, taskID string) string {
	return "tasks/" + projectID + "/" + taskID + ".json"
}

func isNotFound(err error) bool {
	var nf *errors.NotFoundError
	return errors.As(err, &nf)
}
