package branchmodel

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/logging"
)

// maxTaskIDLength caps the slug derived from a legacy branch name.
const maxTaskIDLength = 40

// Migrator moves a repository to the hierarchical branch model.
type Migrator struct {
	git      git.Repository
	detector *Detector
	cfg      config.BranchConfig
	logger   *logging.Logger
}

// NewMigrator creates a Migrator for the given repository.
func NewMigrator(repo git.Repository, cfg config.BranchConfig, logger *logging.Logger) *Migrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Migrator{
		git:      repo,
		detector: NewDetector(repo, cfg, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// Preview computes the migration plan for the repository's current state
// without performing any mutation.
func (m *Migrator) Preview(ctx context.Context) (*MigrationPreview, error) {
	status, err := m.detector.Status(ctx)
	if err != nil {
		return nil, err
	}
	return PlanMigration(status, m.cfg.DevBranch), nil
}

// PlanMigration is the pure planning function behind Preview: given a
// topology snapshot it decides which branches to create and rename.
// Branches that cannot be safely mapped become warnings and are excluded
// from the plan; a rename never targets an existing branch.
func PlanMigration(status *Status, devBranch string) *MigrationPreview {
	preview := &MigrationPreview{
		BranchesToCreate: []string{},
		BranchesToRename: []string{},
		Warnings:         []string{},
	}

	if status.Model == ModelHierarchical {
		return preview
	}

	if status.DevBranch == "" && status.MainBranch != "" {
		preview.BranchesToCreate = append(preview.BranchesToCreate, devBranch)
	}

	taken := make(map[string]bool)
	for _, existing := range status.FeatureBranches {
		taken[existing] = true
	}

	for _, legacy := range status.WorktreeBranches {
		taskID := DeriveTaskID(legacy)
		if taskID == "" {
			preview.Warnings = append(preview.Warnings,
				fmt.Sprintf("cannot derive a task id from %q, branch left untouched", legacy))
			continue
		}
		target := "feature/" + taskID
		if taken[target] {
			preview.Warnings = append(preview.Warnings,
				fmt.Sprintf("rename target %q for %q already exists, branch left untouched", target, legacy))
			continue
		}
		taken[target] = true
		preview.BranchesToRename = append(preview.BranchesToRename, legacy+" -> "+target)
	}

	return preview
}

// Migrate applies the migration plan. The dev branch is created first since
// feature work depends on it; each rename is then attempted independently.
// Failures are collected into the result rather than rolled back, and a
// failed rename leaves the original branch untouched.
func (m *Migrator) Migrate(ctx context.Context) (*MigrationResult, error) {
	status, err := m.detector.Status(ctx)
	if err != nil {
		return nil, err
	}

	result := &MigrationResult{
		Model:           status.Model,
		BranchesCreated: []string{},
		BranchesRenamed: []string{},
		Errors:          []string{},
		Warnings:        []string{},
	}

	if status.Model == ModelHierarchical {
		// Already conforming; re-running migrate is a no-op.
		return result, nil
	}

	if !status.CanMigrate {
		return nil, errors.NewValidationError("migration blocked: " + strings.Join(status.Issues, "; ")).
			WithField("repository").
			WithValue(m.git.RepoDir())
	}

	preview := PlanMigration(status, m.cfg.DevBranch)
	result.Warnings = append(result.Warnings, preview.Warnings...)

	for _, name := range preview.BranchesToCreate {
		if err := m.git.CreateBranch(name, status.MainBranch); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("create %s: %v", name, err))
			m.logger.Warn("migration branch creation failed", "branch", name, "error", err.Error())
			continue
		}
		result.BranchesCreated = append(result.BranchesCreated, name)
		m.logger.Info("migration created branch", "branch", name, "base", status.MainBranch)
	}

	for _, pair := range preview.BranchesToRename {
		oldName, newName, ok := splitRenamePair(pair)
		if !ok {
			continue
		}
		if err := m.git.RenameBranch(oldName, newName); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("rename %s -> %s: %v", oldName, newName, err))
			m.logger.Warn("migration rename failed", "from", oldName, "to", newName, "error", err.Error())
			continue
		}
		result.BranchesRenamed = append(result.BranchesRenamed, pair)
		m.logger.Info("migration renamed branch", "from", oldName, "to", newName)
	}

	after, err := m.detector.Status(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("post-migration detection: %v", err))
		return result, nil
	}
	result.Model = after.Model

	return result, nil
}

// DeriveTaskID maps a legacy worktree branch name to a task id: the first
// recognized prefix is stripped and the remainder slugified. Returns ""
// when no usable slug remains.
func DeriveTaskID(branch string) string {
	name := branch
	if idx := strings.Index(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return slugify(name)
}

// slugify lowercases the input, replaces runs of non-alphanumeric
// characters with single hyphens, and trims to maxTaskIDLength.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxTaskIDLength {
		slug = strings.Trim(slug[:maxTaskIDLength], "-")
	}
	return slug
}

// splitRenamePair parses an "old -> new" plan entry.
func splitRenamePair(pair string) (oldName, newName string, ok bool) {
	parts := strings.SplitN(pair, " -> ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
