package branchmodel

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ValidateBranchName checks a branch name against the hierarchy rules.
// Syntax rules apply to every name: no whitespace, no "..", must not start
// with "-". Names under a recognized prefix must additionally follow that
// prefix's convention. Syntactically valid names outside any convention
// are valid but unclassified (nil MergeTargets).
func ValidateBranchName(name string) *ValidateResult {
	if name == "" {
		return &ValidateResult{Valid: false, Error: "branch name cannot be empty"}
	}
	if strings.ContainsAny(name, " \t\n") {
		return &ValidateResult{Valid: false, Error: "branch name cannot contain whitespace"}
	}
	if strings.Contains(name, "..") {
		return &ValidateResult{Valid: false, Error: "branch name cannot contain '..'"}
	}
	if strings.HasPrefix(name, "-") {
		return &ValidateResult{Valid: false, Error: "branch name cannot start with '-'"}
	}

	switch {
	case strings.HasPrefix(name, "feature/"):
		taskID := strings.TrimPrefix(name, "feature/")
		if taskID == "" {
			return &ValidateResult{Valid: false, Error: "feature branch must name a task: feature/<taskId>"}
		}
		return &ValidateResult{Valid: true, MergeTargets: []string{"dev"}}

	case strings.HasPrefix(name, "release/"):
		version := strings.TrimPrefix(name, "release/")
		if _, err := semver.StrictNewVersion(version); err != nil {
			return &ValidateResult{Valid: false, Error: "release branch must carry a semver version: release/<semver>"}
		}
		return &ValidateResult{Valid: true, MergeTargets: []string{"main"}}

	case strings.HasPrefix(name, "hotfix/"):
		hotfix := strings.TrimPrefix(name, "hotfix/")
		if hotfix == "" {
			return &ValidateResult{Valid: false, Error: "hotfix branch must be named: hotfix/<name>"}
		}
		return &ValidateResult{Valid: true, MergeTargets: []string{"main", "dev"}}

	default:
		return &ValidateResult{Valid: true}
	}
}

// ParseFeatureBranch extracts task information from a feature branch name.
// A path segment after the task id marks a subtask branch
// (feature/<taskId>/<subtask>). Returns nil when the name is not a feature
// branch.
func ParseFeatureBranch(name string) *FeatureBranch {
	if !strings.HasPrefix(name, "feature/") {
		return nil
	}
	rest := strings.TrimPrefix(name, "feature/")
	if rest == "" {
		return nil
	}
	taskID, _, isSubtask := strings.Cut(rest, "/")
	return &FeatureBranch{
		Name:      name,
		TaskID:    taskID,
		IsSubtask: isSubtask,
	}
}
