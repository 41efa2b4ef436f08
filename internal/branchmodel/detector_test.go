package branchmodel

import (
	"context"
	"testing"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/testutil"
)

func newDetector(t *testing.T, repoDir string) *Detector {
	t.Helper()
	return NewDetector(git.NewClient(repoDir), config.Default().Branch, nil)
}

func TestDetect_FlatRepo(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)

	result, err := newDetector(t, dir).Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.Model != ModelFlat {
		t.Errorf("Model = %q, want flat", result.Model)
	}
	if !result.NeedsMigration {
		t.Error("flat repo should need migration")
	}
	if result.Status.MainBranch != "main" {
		t.Errorf("MainBranch = %q, want main", result.Status.MainBranch)
	}
	if !result.Status.CanMigrate {
		t.Error("flat repo with main should be migratable")
	}
}

func TestDetect_HierarchicalRepo(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupHierarchicalRepo(t)
	testutil.CreateBranch(t, dir, "feature/task-1")
	testutil.CreateBranch(t, dir, "release/1.0.0")

	result, err := newDetector(t, dir).Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.Model != ModelHierarchical {
		t.Errorf("Model = %q, want hierarchical", result.Model)
	}
	if result.NeedsMigration {
		t.Error("hierarchical repo should not need migration")
	}
	if result.Status.DevBranch != "dev" {
		t.Errorf("DevBranch = %q, want dev", result.Status.DevBranch)
	}
	if len(result.Status.FeatureBranches) != 1 || result.Status.FeatureBranches[0] != "feature/task-1" {
		t.Errorf("FeatureBranches = %v", result.Status.FeatureBranches)
	}
	if len(result.Status.ReleaseBranches) != 1 || result.Status.ReleaseBranches[0] != "release/1.0.0" {
		t.Errorf("ReleaseBranches = %v", result.Status.ReleaseBranches)
	}
}

func TestDetect_LegacyRepo(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupLegacyRepo(t, "agent/auth-flow", "wt/fix-login")

	result, err := newDetector(t, dir).Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.Model != ModelWorktree {
		t.Errorf("Model = %q, want worktree", result.Model)
	}
	if len(result.Status.WorktreeBranches) != 2 {
		t.Errorf("WorktreeBranches = %v, want 2 entries", result.Status.WorktreeBranches)
	}
	if len(result.Status.MigrationSteps) == 0 {
		t.Error("expected migration steps for legacy repo")
	}
}

func TestDetect_HierarchicalOutranksLegacy(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupHierarchicalRepo(t)
	testutil.CreateBranch(t, dir, "agent/leftover")

	result, err := newDetector(t, dir).Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.Model != ModelHierarchical {
		t.Errorf("Model = %q, want hierarchical (dev outranks legacy branches)", result.Model)
	}
	if len(result.Status.WorktreeBranches) != 1 {
		t.Errorf("legacy branch should still be reported: %v", result.Status.WorktreeBranches)
	}
}

func TestDetect_UnclassifiedBranches(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := testutil.SetupTestRepo(t)
	testutil.CreateBranch(t, dir, "experiments")

	result, err := newDetector(t, dir).Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.Model != ModelUnknown {
		t.Errorf("Model = %q, want unknown", result.Model)
	}
	if len(result.Status.Issues) == 0 {
		t.Error("expected an issue naming the unclassified branch")
	}
}

func TestDetect_NotARepository(t *testing.T) {
	testutil.SkipIfNoGit(t)
	dir := t.TempDir()

	_, err := newDetector(t, dir).Detect(context.Background())
	if !errors.Is(err, errors.ErrNotGitRepository) {
		t.Errorf("expected ErrNotGitRepository, got %v", err)
	}
}

func TestPatternTable_Priority(t *testing.T) {
	table := NewPatternTable(config.Default().Branch)

	tests := []struct {
		branch string
		want   BranchKind
	}{
		{"main", KindMain},
		{"master", KindMain},
		{"dev", KindDev},
		{"release/1.2.0", KindRelease},
		{"feature/task-42", KindFeature},
		{"feature/task-42/sub-1", KindFeature},
		{"hotfix/login-fix", KindHotfix},
		{"agent/auth", KindLegacy},
		{"wt/thing", KindLegacy},
		{"worktree/thing", KindLegacy},
		{"work/thing", KindLegacy},
		{"random-topic", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.branch, func(t *testing.T) {
			if got := table.Classify(tt.branch); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.branch, got, tt.want)
			}
		})
	}
}
