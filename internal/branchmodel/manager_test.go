package branchmodel

import (
	"context"
	"testing"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/testutil"
)

func newManager(t *testing.T, repoDir string) *Manager {
	t.Helper()
	return NewManager(git.NewClient(repoDir), config.Default().Branch, nil)
}

func TestCreateFeatureBranch(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupHierarchicalRepo(t)
	ctx := context.Background()

	name, err := newManager(t, dir).CreateFeatureBranch(ctx, "task-42", "")
	if err != nil {
		t.Fatalf("CreateFeatureBranch() error = %v", err)
	}
	if name != "feature/task-42" {
		t.Errorf("branch name = %q, want feature/task-42", name)
	}
	if !testutil.BranchExists(t, dir, "feature/task-42") {
		t.Error("branch was not created")
	}
}

func TestCreateFeatureBranch_IdempotentAtSameCommit(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupHierarchicalRepo(t)
	ctx := context.Background()
	manager := newManager(t, dir)

	if _, err := manager.CreateFeatureBranch(ctx, "task-42", ""); err != nil {
		t.Fatalf("first create error = %v", err)
	}
	name, err := manager.CreateFeatureBranch(ctx, "task-42", "")
	if err != nil {
		t.Fatalf("re-create at same commit should succeed, got %v", err)
	}
	if name != "feature/task-42" {
		t.Errorf("branch name = %q", name)
	}
}

func TestCreateFeatureBranch_DivergedExisting(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupHierarchicalRepo(t)
	ctx := context.Background()
	manager := newManager(t, dir)

	if _, err := manager.CreateFeatureBranch(ctx, "task-42", ""); err != nil {
		t.Fatalf("create error = %v", err)
	}
	testutil.CommitOnBranch(t, dir, "feature/task-42", "work.txt", "change", "feat: work")

	_, err := manager.CreateFeatureBranch(ctx, "task-42", "")
	if !errors.Is(err, errors.ErrBranchExists) {
		t.Errorf("expected ErrBranchExists for diverged branch, got %v", err)
	}
}

func TestCreateFeatureBranch_NoDevNoBase(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	ctx := context.Background()

	_, err := newManager(t, dir).CreateFeatureBranch(ctx, "task-42", "")
	if !errors.Is(err, errors.ErrBaseNotFound) {
		t.Errorf("expected ErrBaseNotFound without dev, got %v", err)
	}

	// An explicit base sidesteps the missing dev branch.
	name, err := newManager(t, dir).CreateFeatureBranch(ctx, "task-42", "main")
	if err != nil {
		t.Fatalf("CreateFeatureBranch with explicit base error = %v", err)
	}
	if name != "feature/task-42" {
		t.Errorf("branch name = %q", name)
	}
}

func TestCreateFeatureBranch_InvalidTaskID(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupHierarchicalRepo(t)

	_, err := newManager(t, dir).CreateFeatureBranch(context.Background(), "task 42", "")
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for whitespace task id, got %v", err)
	}
}

func TestCreateReleaseBranch(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupHierarchicalRepo(t)
	ctx := context.Background()

	name, err := newManager(t, dir).CreateReleaseBranch(ctx, "1.2.0", "")
	if err != nil {
		t.Fatalf("CreateReleaseBranch() error = %v", err)
	}
	if name != "release/1.2.0" {
		t.Errorf("branch name = %q", name)
	}
	if !testutil.BranchExists(t, dir, "release/1.2.0") {
		t.Error("branch was not created")
	}
}

func TestCreateReleaseBranch_InvalidVersion(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupHierarchicalRepo(t)

	for _, version := range []string{"1.2", "v1.2.0", "next", ""} {
		_, err := newManager(t, dir).CreateReleaseBranch(context.Background(), version, "")
		if !errors.Is(err, errors.ErrInvalidVersion) {
			t.Errorf("CreateReleaseBranch(%q): expected ErrInvalidVersion, got %v", version, err)
		}
	}
}

func TestCreateHotfixBranch(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupHierarchicalRepo(t)
	ctx := context.Background()
	client := git.NewClient(dir)

	if err := client.CreateTag("v1.0.0", "main", "Release 1.0.0"); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}

	name, err := newManager(t, dir).CreateHotfixBranch(ctx, "login-fix", "v1.0.0")
	if err != nil {
		t.Fatalf("CreateHotfixBranch() error = %v", err)
	}
	if name != "hotfix/login-fix" {
		t.Errorf("branch name = %q", name)
	}
	if !testutil.BranchExists(t, dir, "hotfix/login-fix") {
		t.Error("branch was not created")
	}
}

func TestCreateHotfixBranch_MissingTag(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupHierarchicalRepo(t)

	_, err := newManager(t, dir).CreateHotfixBranch(context.Background(), "login-fix", "v9.9.9")
	if !errors.Is(err, errors.ErrBaseNotFound) {
		t.Errorf("expected ErrBaseNotFound for missing tag, got %v", err)
	}
}

func TestEnsureDevBranch(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	ctx := context.Background()
	manager := newManager(t, dir)

	ok, err := manager.EnsureDevBranch(ctx, "")
	if err != nil {
		t.Fatalf("EnsureDevBranch() error = %v", err)
	}
	if !ok || !testutil.BranchExists(t, dir, "dev") {
		t.Fatal("dev branch should exist after EnsureDevBranch")
	}

	// Second call must be a pure no-op.
	before := testutil.GetCommitCount(t, dir)
	ok, err = manager.EnsureDevBranch(ctx, "")
	if err != nil || !ok {
		t.Fatalf("idempotent EnsureDevBranch() = %v, %v", ok, err)
	}
	if testutil.GetCommitCount(t, dir) != before {
		t.Error("EnsureDevBranch must not create commits")
	}
}
