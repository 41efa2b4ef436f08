// Package release manages release candidates: computing the next semantic
// version from task metadata, cutting release/<version> branches from dev,
// promoting candidates to main with tagging and back-merge, and abandoning
// them. Release records are persisted through the file store; branch state
// lives in git.
package release

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/meridian-labs/meridian/internal/branchmodel"
	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/logging"
	"github.com/meridian-labs/meridian/internal/store"
	"github.com/meridian-labs/meridian/internal/task"
)

// Orchestrator manages the release lifecycle for one repository.
type Orchestrator struct {
	git       git.Repository
	branches  *branchmodel.Manager
	detector  *branchmodel.Detector
	tasks     *task.Store
	fs        *store.FileStore
	branchCfg config.BranchConfig
	relCfg    config.ReleaseConfig
	logger    *logging.Logger
}

// NewOrchestrator creates a release orchestrator for the given repository.
func NewOrchestrator(repo git.Repository, fs *store.FileStore, tasks *task.Store, cfg *config.Config, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Orchestrator{
		git:       repo,
		branches:  branchmodel.NewManager(repo, cfg.Branch, logger),
		detector:  branchmodel.NewDetector(repo, cfg.Branch, logger),
		tasks:     tasks,
		fs:        fs,
		branchCfg: cfg.Branch,
		relCfg:    cfg.Release,
		logger:    logger,
	}
}

// Get loads a release record.
func (o *Orchestrator) Get(ctx context.Context, projectID, version string) (*Release, error) {
	var rel Release
	if err := o.fs.LoadJSON(ctx, o.key(projectID, version), &rel); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NewNotFoundError("release", version).
				WithCause(errors.ErrReleaseNotFound)
		}
		return nil, err
	}
	return &rel, nil
}

// List returns all releases for a project, newest version first.
func (o *Orchestrator) List(ctx context.Context, projectID string) ([]*Release, error) {
	keys, err := o.fs.List(ctx, "releases/"+projectID)
	if err != nil {
		return nil, err
	}

	releases := make([]*Release, 0, len(keys))
	for _, key := range keys {
		var rel Release
		if err := o.fs.LoadJSON(ctx, key, &rel); err != nil {
			return nil, fmt.Errorf("loading %s: %w", key, err)
		}
		releases = append(releases, &rel)
	}

	sort.Slice(releases, func(i, j int) bool {
		vi, erri := semver.NewVersion(releases[i].Version)
		vj, errj := semver.NewVersion(releases[j].Version)
		if erri != nil || errj != nil {
			return releases[i].Version > releases[j].Version
		}
		return vi.GreaterThan(vj)
	})
	return releases, nil
}

// CurrentVersion returns the highest promoted version for the project, or
// "0.0.0" when nothing has been promoted yet.
func (o *Orchestrator) CurrentVersion(ctx context.Context, projectID string) (*semver.Version, error) {
	releases, err := o.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	current := semver.New(0, 0, 0, "", "")
	for _, rel := range releases {
		if rel.Status != StatusPromoted {
			continue
		}
		v, err := semver.NewVersion(rel.Version)
		if err != nil {
			continue
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, nil
}

// NextVersion computes the next version from the given done tasks'
// metadata. When the project has no promoted release yet, the configured
// initial version acts as a floor.
func (o *Orchestrator) NextVersion(ctx context.Context, projectID string, doneTaskIDs []string) (*VersionInfo, error) {
	current, err := o.CurrentVersion(ctx, projectID)
	if err != nil {
		return nil, err
	}

	tasks, err := o.tasks.GetMany(ctx, projectID, doneTaskIDs)
	if err != nil {
		return nil, err
	}

	info := ComputeNextVersion(current, tasks)

	if current.String() == "0.0.0" && o.relCfg.InitialVersion != "" {
		if floor, err := semver.NewVersion(o.relCfg.InitialVersion); err == nil {
			if next, err := semver.NewVersion(info.Next); err == nil && floor.GreaterThan(next) {
				info.Next = floor.String()
			}
		}
	}

	return info, nil
}

// Create cuts release/<version> from dev and records the candidate.
// The version must be strictly greater than the current promoted version,
// and neither the branch, the tag, nor a release record may already exist.
func (o *Orchestrator) Create(ctx context.Context, projectID, version, releaseNotes string, taskIDs []string) (*Release, error) {
	v, err := semver.StrictNewVersion(version)
	if err != nil {
		return nil, errors.NewReleaseError("not a valid semver version", errors.ErrInvalidVersion).
			WithVersion(version).
			WithPhase("create")
	}

	current, err := o.CurrentVersion(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !v.GreaterThan(current) {
		return nil, errors.NewReleaseError(
			fmt.Sprintf("version must exceed current %s", current),
			errors.ErrInvalidVersion).
			WithVersion(version).
			WithPhase("create")
	}

	branch := "release/" + version
	tag := o.relCfg.TagPrefix + version
	if o.git.BranchExists(branch) || o.git.TagExists(tag) {
		return nil, errors.NewReleaseError("release branch or tag already exists", errors.ErrVersionExists).
			WithVersion(version).
			WithPhase("create")
	}
	if exists, err := o.fs.Exists(ctx, o.key(projectID, version)); err != nil {
		return nil, err
	} else if exists {
		return nil, errors.NewReleaseError("release record already exists", errors.ErrVersionExists).
			WithVersion(version).
			WithPhase("create")
	}

	if _, err := o.branches.CreateReleaseBranch(ctx, version, ""); err != nil {
		return nil, err
	}

	rel := &Release{
		ProjectID:    projectID,
		Version:      version,
		Branch:       branch,
		Status:       StatusCandidate,
		ReleaseNotes: releaseNotes,
		TaskIDs:      taskIDs,
		CreatedAt:    time.Now().UTC(),
	}
	if commit, err := o.git.LastCommit(branch); err == nil {
		rel.Commit = commit
	}

	if err := o.fs.SaveJSON(ctx, o.key(projectID, version), rel); err != nil {
		return nil, err
	}

	o.logger.Info("created release candidate", "version", version, "branch", branch)
	return rel, nil
}

// GenerateChangelog renders markdown release notes for the given tasks,
// grouped by change category. Advisory only; mutates nothing.
func (o *Orchestrator) GenerateChangelog(ctx context.Context, projectID, version string, taskIDs []string) (string, error) {
	tasks, err := o.tasks.GetMany(ctx, projectID, taskIDs)
	if err != nil {
		return "", err
	}
	return RenderChangelog(version, tasks), nil
}

// Promote merges the release candidate into main, tags the result, and
// back-merges main into dev. The merge into main is the only hard step:
// tag and back-merge failures become warnings and the release is still
// promoted, since main already carries the release content.
func (o *Orchestrator) Promote(ctx context.Context, projectID, version string) (*PromoteResult, error) {
	rel, err := o.Get(ctx, projectID, version)
	if err != nil {
		return nil, err
	}
	if rel.Status.Terminal() {
		return nil, errors.NewReleaseError(
			fmt.Sprintf("release is %s and cannot be promoted", rel.Status),
			errors.ErrReleaseTerminal).
			WithVersion(version).
			WithPhase("promote")
	}
	if !o.git.BranchExists(rel.Branch) {
		return nil, errors.NewGitError("promote", errors.ErrBranchNotFound).
			WithBranch(rel.Branch).
			WithRepository(o.git.RepoDir())
	}

	status, err := o.detector.Status(ctx)
	if err != nil {
		return nil, err
	}
	if status.MainBranch == "" {
		return nil, errors.NewReleaseError("no main branch detected", errors.ErrBaseNotFound).
			WithVersion(version).
			WithPhase("promote")
	}

	result := &PromoteResult{Version: version, Warnings: []string{}}

	// Step 1: merge into main. Failure here aborts promotion entirely.
	if err := o.git.Checkout(status.MainBranch); err != nil {
		return nil, err
	}
	if err := o.git.Merge(rel.Branch, git.MergeOptions{Message: "Release " + version}); err != nil {
		return nil, err
	}

	// Step 2: tag. Failure is a warning; the tag can be created manually.
	tag := o.relCfg.TagPrefix + version
	if err := o.git.CreateTag(tag, status.MainBranch, "Release "+version); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("tagging failed: %v", err))
		o.logger.Warn("release tag creation failed", "version", version, "tag", tag, "error", err.Error())
	} else {
		result.Tag = tag
		rel.Tag = tag
	}

	// Step 3: back-merge main into dev. A conflict leaves dev untouched and
	// is reported; main remains the source of truth.
	if status.DevBranch != "" {
		if err := o.backMerge(status.DevBranch, status.MainBranch, version); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("back-merge to %s failed: %v", status.DevBranch, err))
			o.logger.Warn("back-merge failed", "version", version, "error", err.Error())
		}
	}

	now := time.Now().UTC()
	rel.Status = StatusPromoted
	rel.PromotedAt = &now
	if err := o.fs.SaveJSON(ctx, o.key(projectID, version), rel); err != nil {
		return nil, err
	}

	o.markTasksReleased(ctx, projectID, rel.TaskIDs, version)

	o.logger.Info("promoted release", "version", version, "tag", result.Tag, "warnings", len(result.Warnings))
	return result, nil
}

// Abandon marks a candidate abandoned. The release branch is kept for
// auditability; only the status changes.
func (o *Orchestrator) Abandon(ctx context.Context, projectID, version string) (*Release, error) {
	rel, err := o.Get(ctx, projectID, version)
	if err != nil {
		return nil, err
	}
	if rel.Status.Terminal() {
		return nil, errors.NewReleaseError(
			fmt.Sprintf("release is %s and cannot be abandoned", rel.Status),
			errors.ErrReleaseTerminal).
			WithVersion(version).
			WithPhase("abandon")
	}

	now := time.Now().UTC()
	rel.Status = StatusAbandoned
	rel.AbandonedAt = &now
	if err := o.fs.SaveJSON(ctx, o.key(projectID, version), rel); err != nil {
		return nil, err
	}

	o.logger.Info("abandoned release", "version", version)
	return rel, nil
}

// backMerge merges main into dev after a promotion.
func (o *Orchestrator) backMerge(devBranch, mainBranch, version string) error {
	if err := o.git.Checkout(devBranch); err != nil {
		return err
	}
	return o.git.Merge(mainBranch, git.MergeOptions{
		Message: fmt.Sprintf("Back-merge %s into %s after release %s", mainBranch, devBranch, version),
	})
}

// markTasksReleased records the shipping version on each task, best-effort.
func (o *Orchestrator) markTasksReleased(ctx context.Context, projectID string, taskIDs []string, version string) {
	for _, id := range taskIDs {
		t, err := o.tasks.Get(ctx, projectID, id)
		if err != nil {
			continue
		}
		t.ReleasedIn = version
		if err := o.tasks.Save(ctx, t); err != nil {
			o.logger.Warn("failed to record release on task", "task", id, "error", err.Error())
		}
	}
}

func (o *Orchestrator) key(projectID, version string) string {
	return "releases/" + projectID + "/" + version + ".json"
}

// RenderChangelog produces markdown release notes grouped by change
// category.
func RenderChangelog(version string, tasks []*task.Task) string {
	var breaking, features, fixes, other []*task.Task
	for _, t := range tasks {
		switch t.Classify() {
		case task.ChangeBreaking:
			breaking = append(breaking, t)
		case task.ChangeFeature:
			features = append(features, t)
		case task.ChangeFix:
			fixes = append(fixes, t)
		default:
			other = append(other, t)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Release %s\n", version)
	writeSection(&b, "Breaking Changes", breaking)
	writeSection(&b, "Features", features)
	writeSection(&b, "Fixes", fixes)
	writeSection(&b, "Other", other)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeSection(b *strings.Builder, heading string, tasks []*task.Task) {
	if len(tasks) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	for _, t := range tasks {
		fmt.Fprintf(b, "- %s", t.Title)
		if t.ID != "" {
			fmt.Fprintf(b, " (%s)", t.ID)
		}
		b.WriteString("\n")
	}
}
