package task

import (
	"context"
	"testing"
	"time"

	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/store"
)

func TestClassifySubject(t *testing.T) {
	tests := []struct {
		subject string
		want    ChangeType
	}{
		{"feat: add login", ChangeFeature},
		{"feature: add login", ChangeFeature},
		{"feat(api): add endpoint", ChangeFeature},
		{"fix: null check", ChangeFix},
		{"bugfix: race in watcher", ChangeFix},
		{"fix(ui): alignment", ChangeFix},
		{"feat!: drop v1 endpoints", ChangeBreaking},
		{"feat(api)!: drop v1 endpoints", ChangeBreaking},
		{"refactor!: rewrite storage", ChangeBreaking},
		{"chore: bump deps", ChangeChore},
		{"docs: update readme", ChangeChore},
		{"no conventional prefix", ChangeChore},
		{"fix: BREAKING CHANGE: renames config keys", ChangeBreaking},
		{"", ChangeChore},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			if got := ClassifySubject(tt.subject); got != tt.want {
				t.Errorf("ClassifySubject(%q) = %q, want %q", tt.subject, got, tt.want)
			}
		})
	}
}

func TestTaskClassify_ExplicitTypeWins(t *testing.T) {
	task := &Task{Title: "feat: looks like a feature", ChangeType: ChangeBreaking}
	if got := task.Classify(); got != ChangeBreaking {
		t.Errorf("Classify() = %q, want breaking", got)
	}

	task = &Task{Title: "fix: derived from title"}
	if got := task.Classify(); got != ChangeFix {
		t.Errorf("Classify() = %q, want fix", got)
	}
}

func newTaskStore(t *testing.T) *Store {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return NewStore(fs)
}

func TestStoreSaveAndGet(t *testing.T) {
	s := newTaskStore(t)
	ctx := context.Background()

	in := &Task{
		ID:         "task-42",
		ProjectID:  "proj-1",
		Title:      "feat: add login",
		ChangeType: ChangeFeature,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := s.Get(ctx, "proj-1", "task-42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out.Title != in.Title || out.ChangeType != in.ChangeType {
		t.Errorf("Get() = %+v, want %+v", out, in)
	}
}

func TestStoreSave_RequiresIDs(t *testing.T) {
	s := newTaskStore(t)

	err := s.Save(context.Background(), &Task{Title: "no ids"})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStoreGet_NotFound(t *testing.T) {
	s := newTaskStore(t)

	_, err := s.Get(context.Background(), "proj-1", "ghost")
	var nf *errors.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestStoreList_SortedByCreation(t *testing.T) {
	s := newTaskStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"c", "a", "b"} {
		err := s.Save(ctx, &Task{
			ID:        id,
			ProjectID: "proj-1",
			Title:     "chore: " + id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	tasks, err := s.List(ctx, "proj-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("List() returned %d tasks, want 3", len(tasks))
	}
	if tasks[0].ID != "c" || tasks[1].ID != "a" || tasks[2].ID != "b" {
		t.Errorf("unexpected order: %s, %s, %s", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}
}

func TestStoreGetMany_SkipsMissing(t *testing.T) {
	s := newTaskStore(t)
	ctx := context.Background()

	s.Save(ctx, &Task{ID: "a", ProjectID: "proj-1", Title: "feat: a", CreatedAt: time.Now()})

	tasks, err := s.GetMany(ctx, "proj-1", []string{"a", "missing"})
	if err != nil {
		t.Fatalf("GetMany() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "a" {
		t.Errorf("GetMany() = %v, want only task a", tasks)
	}
}

func TestStoreDelete(t *testing.T) {
	s := newTaskStore(t)
	ctx := context.Background()

	s.Save(ctx, &Task{ID: "a", ProjectID: "proj-1", Title: "feat: a", CreatedAt: time.Now()})
	if err := s.Delete(ctx, "proj-1", "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var nf *errors.NotFoundError
	if err := s.Delete(ctx, "proj-1", "a"); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError on double delete, got %v", err)
	}
}
