package release

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/store"
	"github.com/meridian-labs/meridian/internal/task"
	"github.com/meridian-labs/meridian/internal/testutil"
)

const projectID = "proj-1"

func newReleaseOrchestrator(t *testing.T, repoDir string) (*Orchestrator, *task.Store) {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	tasks := task.NewStore(fs)
	return NewOrchestrator(git.NewClient(repoDir), fs, tasks, config.Default(), nil), tasks
}

// setupReleaseRepo returns a hierarchical repo whose dev branch is one
// commit ahead of main, with HEAD on dev.
func setupReleaseRepo(t *testing.T) string {
	t.Helper()
	dir := testutil.SetupHierarchicalRepo(t)
	testutil.CommitFile(t, dir, "app.txt", "dev work\n", "feat: dev work")
	return dir
}

func TestCreate(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, _ := newReleaseOrchestrator(t, dir)
	ctx := context.Background()

	rel, err := orch.Create(ctx, projectID, "1.2.0", "first cut", []string{"task-1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rel.Status != StatusCandidate {
		t.Errorf("Status = %q, want candidate", rel.Status)
	}
	if rel.Branch != "release/1.2.0" {
		t.Errorf("Branch = %q", rel.Branch)
	}
	if !testutil.BranchExists(t, dir, "release/1.2.0") {
		t.Error("release branch was not created")
	}
	if rel.Commit == nil || rel.Commit.Message == "" {
		t.Error("expected captured branch commit info")
	}

	got, err := orch.Get(ctx, projectID, "1.2.0")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ReleaseNotes != "first cut" {
		t.Errorf("ReleaseNotes = %q", got.ReleaseNotes)
	}
}

func TestCreate_InvalidVersion(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, _ := newReleaseOrchestrator(t, dir)

	for _, version := range []string{"1.2", "v1.2.0", "", "not-semver"} {
		_, err := orch.Create(context.Background(), projectID, version, "", nil)
		if !errors.Is(err, errors.ErrInvalidVersion) {
			t.Errorf("Create(%q): expected ErrInvalidVersion, got %v", version, err)
		}
	}
}

func TestCreate_DuplicateVersion(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, _ := newReleaseOrchestrator(t, dir)
	ctx := context.Background()

	if _, err := orch.Create(ctx, projectID, "1.2.0", "", nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := orch.Create(ctx, projectID, "1.2.0", "", nil)
	if !errors.Is(err, errors.ErrVersionExists) {
		t.Errorf("expected ErrVersionExists, got %v", err)
	}
}

func TestCreate_MustExceedCurrent(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, _ := newReleaseOrchestrator(t, dir)
	ctx := context.Background()

	if _, err := orch.Create(ctx, projectID, "1.2.0", "", nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := orch.Promote(ctx, projectID, "1.2.0"); err != nil {
		t.Fatalf("Promote() error = %v", err)
	}

	_, err := orch.Create(ctx, projectID, "1.1.0", "", nil)
	if !errors.Is(err, errors.ErrInvalidVersion) {
		t.Errorf("expected ErrInvalidVersion for version below current, got %v", err)
	}
}

func TestPromote(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, _ := newReleaseOrchestrator(t, dir)
	ctx := context.Background()

	if _, err := orch.Create(ctx, projectID, "1.2.0", "", nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, err := orch.Promote(ctx, projectID, "1.2.0")
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if result.Tag != "v1.2.0" {
		t.Errorf("Tag = %q, want v1.2.0", result.Tag)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", result.Warnings)
	}
	if !testutil.TagExists(t, dir, "v1.2.0") {
		t.Error("tag v1.2.0 was not created")
	}

	rel, err := orch.Get(ctx, projectID, "1.2.0")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rel.Status != StatusPromoted {
		t.Errorf("Status = %q, want promoted", rel.Status)
	}
	if rel.PromotedAt == nil {
		t.Error("expected PromotedAt timestamp")
	}

	// Back-merge propagated the release merge commit into dev: dev now
	// contains everything on main.
	client := git.NewClient(dir)
	behind, err := client.CountCommits("dev", "main")
	if err != nil {
		t.Fatalf("CountCommits() error = %v", err)
	}
	if behind != 0 {
		t.Errorf("dev is %d commits behind main after back-merge, want 0", behind)
	}
}

func TestPromote_TerminalStateRejected(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, _ := newReleaseOrchestrator(t, dir)
	ctx := context.Background()

	if _, err := orch.Create(ctx, projectID, "1.2.0", "", nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := orch.Promote(ctx, projectID, "1.2.0"); err != nil {
		t.Fatalf("Promote() error = %v", err)
	}

	if _, err := orch.Abandon(ctx, projectID, "1.2.0"); !errors.Is(err, errors.ErrReleaseTerminal) {
		t.Errorf("Abandon after promote: expected ErrReleaseTerminal, got %v", err)
	}
	if _, err := orch.Promote(ctx, projectID, "1.2.0"); !errors.Is(err, errors.ErrReleaseTerminal) {
		t.Errorf("double Promote: expected ErrReleaseTerminal, got %v", err)
	}
}

func TestPromote_TagFailureIsWarning(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, _ := newReleaseOrchestrator(t, dir)
	ctx := context.Background()

	// Occupy the tag name before promotion.
	if err := git.NewClient(dir).CreateTag("v1.2.0", "main", "pre-existing"); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}

	// Creating the candidate must fail: the tag already exists.
	_, err := orch.Create(ctx, projectID, "1.2.0", "", nil)
	if !errors.Is(err, errors.ErrVersionExists) {
		t.Fatalf("expected ErrVersionExists, got %v", err)
	}

	// Cut a different version, then occupy its tag between create and
	// promote to exercise the warning path.
	if _, err := orch.Create(ctx, projectID, "1.3.0", "", nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := git.NewClient(dir).CreateTag("v1.3.0", "main", "raced"); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}

	result, err := orch.Promote(ctx, projectID, "1.3.0")
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a tagging warning")
	}
	if result.Tag != "" {
		t.Errorf("Tag = %q, want empty on tagging failure", result.Tag)
	}

	rel, _ := orch.Get(ctx, projectID, "1.3.0")
	if rel.Status != StatusPromoted {
		t.Errorf("tag failure must not block promotion, Status = %q", rel.Status)
	}
}

func TestAbandon(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, _ := newReleaseOrchestrator(t, dir)
	ctx := context.Background()

	if _, err := orch.Create(ctx, projectID, "1.2.0", "", nil); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rel, err := orch.Abandon(ctx, projectID, "1.2.0")
	if err != nil {
		t.Fatalf("Abandon() error = %v", err)
	}
	if rel.Status != StatusAbandoned || rel.AbandonedAt == nil {
		t.Errorf("unexpected release state: %+v", rel)
	}
	// The branch is preserved for auditability.
	if !testutil.BranchExists(t, dir, "release/1.2.0") {
		t.Error("abandon must not delete the release branch")
	}

	if _, err := orch.Promote(ctx, projectID, "1.2.0"); !errors.Is(err, errors.ErrReleaseTerminal) {
		t.Errorf("Promote after abandon: expected ErrReleaseTerminal, got %v", err)
	}
}

func TestAbandon_NotFound(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, _ := newReleaseOrchestrator(t, dir)

	_, err := orch.Abandon(context.Background(), projectID, "9.9.9")
	if !errors.Is(err, errors.ErrReleaseNotFound) {
		t.Errorf("expected ErrReleaseNotFound, got %v", err)
	}
}

func TestNextVersion_UsesTaskMetadata(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, tasks := newReleaseOrchestrator(t, dir)
	ctx := context.Background()

	for _, tk := range []*task.Task{
		{ID: "t1", ProjectID: projectID, Title: "feat: add login", CreatedAt: time.Now()},
		{ID: "t2", ProjectID: projectID, Title: "fix: crash", CreatedAt: time.Now()},
	} {
		if err := tasks.Save(ctx, tk); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	info, err := orch.NextVersion(ctx, projectID, []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("NextVersion() error = %v", err)
	}
	if info.Current != "0.0.0" {
		t.Errorf("Current = %q, want 0.0.0", info.Current)
	}
	// The configured initial version floors the first release.
	if info.Next != "0.1.0" {
		t.Errorf("Next = %q, want 0.1.0", info.Next)
	}
	if info.BumpType != BumpMinor {
		t.Errorf("BumpType = %q, want minor", info.BumpType)
	}
}

func TestList_SortedNewestFirst(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, _ := newReleaseOrchestrator(t, dir)
	ctx := context.Background()

	for _, v := range []string{"0.9.0", "0.10.0", "0.2.0"} {
		if _, err := orch.Create(ctx, projectID, v, "", nil); err != nil {
			t.Fatalf("Create(%s) error = %v", v, err)
		}
	}

	releases, err := orch.List(ctx, projectID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := make([]string, len(releases))
	for i, rel := range releases {
		got[i] = rel.Version
	}
	want := "0.10.0,0.9.0,0.2.0"
	if strings.Join(got, ",") != want {
		t.Errorf("List order = %v, want %s", got, want)
	}
}

func TestGenerateChangelog(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := setupReleaseRepo(t)
	orch, tasks := newReleaseOrchestrator(t, dir)
	ctx := context.Background()

	for _, tk := range []*task.Task{
		{ID: "t1", ProjectID: projectID, Title: "feat!: drop v1 api", CreatedAt: time.Now()},
		{ID: "t2", ProjectID: projectID, Title: "feat: add login", CreatedAt: time.Now()},
		{ID: "t3", ProjectID: projectID, Title: "fix: crash on start", CreatedAt: time.Now()},
	} {
		if err := tasks.Save(ctx, tk); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	changelog, err := orch.GenerateChangelog(ctx, projectID, "2.0.0", []string{"t1", "t2", "t3"})
	if err != nil {
		t.Fatalf("GenerateChangelog() error = %v", err)
	}
	for _, want := range []string{
		"# Release 2.0.0",
		"## Breaking Changes",
		"## Features",
		"## Fixes",
		"feat!: drop v1 api (t1)",
	} {
		if !strings.Contains(changelog, want) {
			t.Errorf("changelog missing %q:\n%s", want, changelog)
		}
	}
}
