// Package merge computes mergability of feature branches into the dev
// branch and performs the merges. All answers are computed from live git
// state; nothing is cached between calls.
package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-labs/meridian/internal/branchmodel"
	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/logging"
)

// Orchestrator performs feature-branch merges into dev for one repository.
type Orchestrator struct {
	git      git.Repository
	branches *branchmodel.Manager
	cfg      config.BranchConfig
	logger   *logging.Logger
}

// NewOrchestrator creates a merge orchestrator for the given repository.
func NewOrchestrator(repo git.Repository, cfg config.BranchConfig, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{
		git:      repo,
		branches: branchmodel.NewManager(repo, cfg, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// BranchForTask resolves a task id to its feature branch name.
func BranchForTask(taskID string) string {
	return "feature/" + taskID
}

// Status computes the mergability snapshot for a task's feature branch.
// A missing branch is an expected steady state for new tasks and is
// reported as BranchExists=false, not an error.
func (o *Orchestrator) Status(ctx context.Context, taskID string) (*StatusResult, error) {
	source := BranchForTask(taskID)
	if !o.git.BranchExists(source) {
		return &StatusResult{BranchExists: false}, nil
	}

	target := o.cfg.DevBranch
	if !o.git.BranchExists(target) {
		return nil, errors.NewMergeError("dev branch missing", errors.ErrBaseNotFound).
			WithTaskID(taskID).
			WithTarget(target)
	}

	ahead, err := o.git.CountCommits(target, source)
	if err != nil {
		return nil, err
	}
	conflicts, err := o.git.ConflictScan(target, source)
	if err != nil {
		return nil, err
	}
	stats, err := o.git.DiffStats(target, source)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		BranchExists: true,
		HasConflicts: len(conflicts) > 0,
		CommitsAhead: ahead,
		FilesChanged: len(stats),
	}
	for _, stat := range stats {
		result.Additions += stat.Additions
		result.Deletions += stat.Deletions
	}
	result.CanMergeToDev = !result.HasConflicts && ahead > 0

	return result, nil
}

// Preview computes the full merge preview for a task's feature branch,
// including the conflict file list, per-file stats, commits-behind drift,
// and uncommitted working-copy state.
func (o *Orchestrator) Preview(ctx context.Context, taskID string) (*PreviewResult, error) {
	source := BranchForTask(taskID)
	target := o.cfg.DevBranch

	if !o.git.BranchExists(source) {
		return nil, errors.NewMergeError("feature branch does not exist", errors.ErrBranchNotFound).
			WithTaskID(taskID).
			WithSource(source)
	}
	if !o.git.BranchExists(target) {
		return nil, errors.NewMergeError("dev branch missing", errors.ErrBaseNotFound).
			WithTaskID(taskID).
			WithTarget(target)
	}

	ahead, err := o.git.CountCommits(target, source)
	if err != nil {
		return nil, err
	}
	behind, err := o.git.CountCommits(source, target)
	if err != nil {
		return nil, err
	}
	conflicts, err := o.git.ConflictScan(target, source)
	if err != nil {
		return nil, err
	}
	stats, err := o.git.DiffStats(target, source)
	if err != nil {
		return nil, err
	}
	dirty, err := o.git.HasUncommittedChanges()
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{
		SourceBranch:       source,
		TargetBranch:       target,
		CommitsAhead:       ahead,
		CommitsBehind:      behind,
		FilesChanged:       len(stats),
		Conflicts:          conflicts,
		ChangedFiles:       stats,
		UncommittedChanges: dirty,
	}
	if result.Conflicts == nil {
		result.Conflicts = []git.Conflict{}
	}
	if result.ChangedFiles == nil {
		result.ChangedFiles = []git.FileStat{}
	}
	for _, stat := range stats {
		result.Additions += stat.Additions
		result.Deletions += stat.Deletions
	}
	result.CanMerge = len(conflicts) == 0 && ahead > 0

	return result, nil
}

// Merge merges the task's feature branch into dev. Preconditions mirror
// Preview: conflicts fail with a merge-blocked error without touching dev,
// zero commits ahead fails with nothing-to-merge. With NoCommit set the
// changes are staged in the dev working tree without a merge commit and the
// result carries a suggested commit message built from the branch's
// commits.
func (o *Orchestrator) Merge(ctx context.Context, taskID string, opts Options) (*Result, error) {
	source := BranchForTask(taskID)
	target := o.cfg.DevBranch

	preview, err := o.Preview(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if len(preview.Conflicts) > 0 {
		return nil, errors.NewMergeError(
			fmt.Sprintf("%d conflicting files, resolve before merging", len(preview.Conflicts)),
			errors.ErrMergeBlocked).
			WithTaskID(taskID).
			WithSource(source).
			WithTarget(target)
	}
	if preview.CommitsAhead == 0 {
		return nil, errors.NewMergeError("branch has no commits ahead of dev", errors.ErrNothingToMerge).
			WithTaskID(taskID).
			WithSource(source).
			WithTarget(target)
	}
	if opts.NoCommit && preview.UncommittedChanges {
		return nil, errors.NewMergeError("working copy has uncommitted changes, cannot stage merge", errors.ErrDirtyWorktree).
			WithTaskID(taskID).
			WithTarget(target)
	}

	subjects, err := o.git.CommitSubjects(target, source)
	if err != nil {
		return nil, err
	}
	message := suggestCommitMessage(taskID, subjects)

	if err := o.git.Checkout(target); err != nil {
		return nil, err
	}

	mergeOpts := git.MergeOptions{NoCommit: opts.NoCommit}
	if !opts.NoCommit {
		mergeOpts.Message = message
	}
	if err := o.git.Merge(source, mergeOpts); err != nil {
		return nil, err
	}

	o.logger.Info("merged feature branch",
		"task", taskID,
		"source", source,
		"target", target,
		"commits", preview.CommitsAhead,
		"staged", opts.NoCommit)

	result := &Result{
		TaskID:        taskID,
		SourceBranch:  source,
		TargetBranch:  target,
		CommitsMerged: preview.CommitsAhead,
		Staged:        opts.NoCommit,
	}
	if opts.NoCommit {
		result.SuggestedCommitMessage = message
	}
	return result, nil
}

// EnsureDevBranch makes sure the integration branch exists, creating it
// from baseBranch (default: the detected main branch) when missing.
func (o *Orchestrator) EnsureDevBranch(ctx context.Context, baseBranch string) (bool, error) {
	return o.branches.EnsureDevBranch(ctx, baseBranch)
}

// suggestCommitMessage builds a merge commit message from the branch's
// commit subjects, newest last.
func suggestCommitMessage(taskID string, subjects []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Merge task %s into dev", taskID)
	if len(subjects) == 0 {
		return b.String()
	}
	b.WriteString("\n\n")
	for i := len(subjects) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "- %s\n", subjects[i])
	}
	return strings.TrimRight(b.String(), "\n")
}
