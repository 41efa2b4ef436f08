package branchmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/logging"
)

// Detector classifies a repository's branch topology.
type Detector struct {
	git      git.Repository
	patterns *PatternTable
	logger   *logging.Logger
}

// NewDetector creates a Detector for the given repository.
func NewDetector(repo git.Repository, cfg config.BranchConfig, logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Detector{
		git:      repo,
		patterns: NewPatternTable(cfg),
		logger:   logger,
	}
}

// Detect classifies the repository and reports whether migration is needed.
func (d *Detector) Detect(ctx context.Context) (*DetectResult, error) {
	status, err := d.Status(ctx)
	if err != nil {
		return nil, err
	}

	result := &DetectResult{
		Model:          status.Model,
		NeedsMigration: status.Model != ModelHierarchical,
		Status:         status,
	}

	switch status.Model {
	case ModelHierarchical:
		result.Message = "repository follows the hierarchical branch model"
	case ModelWorktree:
		result.Message = fmt.Sprintf("legacy worktree convention detected (%d branches to migrate)", len(status.WorktreeBranches))
	case ModelFlat:
		result.Message = "flat repository: only a main branch, no integration structure"
	default:
		result.Message = "branch layout matches no recognized convention"
	}

	d.logger.Debug("branch model detected",
		"model", string(status.Model),
		"needsMigration", result.NeedsMigration)
	return result, nil
}

// Status builds a full topology snapshot from the live branch list.
//
// Classification priority: a dev branch makes the repository hierarchical;
// otherwise legacy-prefixed branches make it worktree; otherwise a bare
// main branch makes it flat; anything else is unknown.
func (d *Detector) Status(ctx context.Context) (*Status, error) {
	if !d.git.IsGitRepository() {
		return nil, errors.NewGitError("detect", errors.ErrNotGitRepository).
			WithRepository(d.git.RepoDir())
	}

	branches, err := d.git.ListBranches()
	if err != nil {
		return nil, err
	}

	status := &Status{
		ReleaseBranches:  []string{},
		FeatureBranches:  []string{},
		WorktreeBranches: []string{},
		Issues:           []string{},
		MigrationSteps:   []string{},
	}
	status.MainBranch = d.patterns.MainBranch(branches)

	var unclassified []string
	for _, branch := range branches {
		switch d.patterns.Classify(branch) {
		case KindDev:
			status.DevBranch = branch
		case KindRelease:
			status.ReleaseBranches = append(status.ReleaseBranches, branch)
		case KindFeature:
			status.FeatureBranches = append(status.FeatureBranches, branch)
		case KindLegacy:
			status.WorktreeBranches = append(status.WorktreeBranches, branch)
		case KindOther:
			unclassified = append(unclassified, branch)
		}
	}

	status.Model = d.classify(status, unclassified)

	if status.MainBranch == "" {
		status.Issues = append(status.Issues, "no main branch detected")
	}
	if len(status.WorktreeBranches) > 0 {
		status.Issues = append(status.Issues,
			fmt.Sprintf("%d legacy worktree branches need migration", len(status.WorktreeBranches)))
	}
	if status.Model == ModelUnknown && len(unclassified) > 0 {
		status.Issues = append(status.Issues,
			"unclassified branches: "+strings.Join(unclassified, ", "))
	}
	if (len(status.FeatureBranches) > 0 || len(status.ReleaseBranches) > 0) && status.DevBranch == "" {
		status.Issues = append(status.Issues, "feature or release branches present without a dev branch")
	}

	// Migration needs a base for the dev branch; everything else is
	// recoverable per-branch.
	status.CanMigrate = status.MainBranch != "" && status.Model != ModelHierarchical

	if status.CanMigrate {
		preview := PlanMigration(status, d.patterns.DevBranch())
		for _, name := range preview.BranchesToCreate {
			status.MigrationSteps = append(status.MigrationSteps, "create branch "+name)
		}
		for _, pair := range preview.BranchesToRename {
			status.MigrationSteps = append(status.MigrationSteps, "rename branch "+pair)
		}
	}

	return status, nil
}

// classify applies the model priority order to an assembled snapshot.
func (d *Detector) classify(status *Status, unclassified []string) BranchModel {
	switch {
	case status.DevBranch != "":
		return ModelHierarchical
	case len(status.WorktreeBranches) > 0:
		return ModelWorktree
	case status.MainBranch != "" && len(unclassified) == 0 &&
		len(status.FeatureBranches) == 0 && len(status.ReleaseBranches) == 0:
		return ModelFlat
	default:
		return ModelUnknown
	}
}
