package branchmodel

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/logging"
)

// Manager creates convention-following branches in a repository.
type Manager struct {
	git      git.Repository
	detector *Detector
	cfg      config.BranchConfig
	logger   *logging.Logger
}

// NewManager creates a Manager for the given repository.
func NewManager(repo git.Repository, cfg config.BranchConfig, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		git:      repo,
		detector: NewDetector(repo, cfg, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateFeatureBranch creates feature/<taskID> from the given base, which
// defaults to the dev branch. Creating a branch that already exists at the
// same commit as its base is treated as idempotent success; an existing
// branch that has diverged is a conflict.
func (m *Manager) CreateFeatureBranch(ctx context.Context, taskID, baseBranch string) (string, error) {
	if result := ValidateBranchName("feature/" + taskID); !result.Valid {
		return "", errors.NewValidationError(result.Error).
			WithField("taskId").
			WithValue(taskID)
	}

	base := baseBranch
	if base == "" {
		base = m.cfg.DevBranch
		if !m.git.BranchExists(base) {
			return "", errors.NewGitError("create feature branch", errors.ErrBaseNotFound).
				WithBranch(base).
				WithRepository(m.git.RepoDir())
		}
	}

	name := "feature/" + taskID
	if m.git.BranchExists(name) {
		same, err := m.sameCommit(name, base)
		if err != nil {
			return "", err
		}
		if same {
			return name, nil
		}
		return "", errors.NewGitError("create feature branch", errors.ErrBranchExists).
			WithBranch(name).
			WithRepository(m.git.RepoDir())
	}

	if err := m.git.CreateBranch(name, base); err != nil {
		return "", err
	}
	m.logger.Info("created feature branch", "branch", name, "base", base)
	return name, nil
}

// CreateReleaseBranch creates release/<version> from the given base, which
// defaults to the dev branch.
func (m *Manager) CreateReleaseBranch(ctx context.Context, version, baseBranch string) (string, error) {
	if _, err := semver.StrictNewVersion(version); err != nil {
		return "", errors.NewValidationError("not a valid semver version").
			WithField("version").
			WithValue(version).
			WithCause(errors.ErrInvalidVersion)
	}

	base := baseBranch
	if base == "" {
		base = m.cfg.DevBranch
		if !m.git.BranchExists(base) {
			return "", errors.NewGitError("create release branch", errors.ErrBaseNotFound).
				WithBranch(base).
				WithRepository(m.git.RepoDir())
		}
	}

	name := "release/" + version
	if err := m.git.CreateBranch(name, base); err != nil {
		return "", err
	}
	m.logger.Info("created release branch", "branch", name, "base", base)
	return name, nil
}

// CreateHotfixBranch creates hotfix/<name> from the given tag, isolating
// the fix to a released state rather than the tip of dev or main.
func (m *Manager) CreateHotfixBranch(ctx context.Context, name, tag string) (string, error) {
	branch := "hotfix/" + name
	if result := ValidateBranchName(branch); !result.Valid {
		return "", errors.NewValidationError(result.Error).
			WithField("name").
			WithValue(name)
	}

	if !m.git.TagExists(tag) {
		return "", errors.NewGitError("create hotfix branch", errors.ErrBaseNotFound).
			WithBranch(tag).
			WithRepository(m.git.RepoDir())
	}

	if err := m.git.CreateBranch(branch, tag); err != nil {
		return "", err
	}
	m.logger.Info("created hotfix branch", "branch", branch, "tag", tag)
	return branch, nil
}

// EnsureDevBranch makes sure the integration branch exists, creating it
// from baseBranch (default: the detected main branch) when missing.
// Returns true when the branch exists after the call.
func (m *Manager) EnsureDevBranch(ctx context.Context, baseBranch string) (bool, error) {
	if m.git.BranchExists(m.cfg.DevBranch) {
		return true, nil
	}

	base := baseBranch
	if base == "" {
		status, err := m.detector.Status(ctx)
		if err != nil {
			return false, err
		}
		if status.MainBranch == "" {
			return false, errors.NewGitError("ensure dev branch", errors.ErrBaseNotFound).
				WithRepository(m.git.RepoDir())
		}
		base = status.MainBranch
	}

	if err := m.git.CreateBranch(m.cfg.DevBranch, base); err != nil {
		return false, err
	}
	m.logger.Info("created dev branch", "branch", m.cfg.DevBranch, "base", base)
	return true, nil
}

// sameCommit reports whether two refs point at the same commit.
func (m *Manager) sameCommit(a, b string) (bool, error) {
	aheadA, err := m.git.CountCommits(b, a)
	if err != nil {
		return false, err
	}
	aheadB, err := m.git.CountCommits(a, b)
	if err != nil {
		return false, err
	}
	return aheadA == 0 && aheadB == 0, nil
}
