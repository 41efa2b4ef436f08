// Package branchmodel detects a repository's branching convention and
// migrates it toward the three-tier hierarchical model
// (main -> release/* -> dev -> feature/*). Classification is computed fresh
// from the live branch list on every call; nothing here caches topology.
package branchmodel

// BranchModel classifies a repository's branching convention.
type BranchModel string

const (
	// ModelUnknown means the branch set matches no recognized convention.
	ModelUnknown BranchModel = "unknown"
	// ModelFlat means only a main branch exists, with no structure.
	ModelFlat BranchModel = "flat"
	// ModelWorktree means legacy worktree-convention branches are present.
	ModelWorktree BranchModel = "worktree"
	// ModelHierarchical means the repository follows the three-tier model.
	ModelHierarchical BranchModel = "hierarchical"
)

// Status is a snapshot of a repository's branch topology.
type Status struct {
	Model            BranchModel `json:"model"`
	MainBranch       string      `json:"mainBranch,omitempty"`
	DevBranch        string      `json:"devBranch,omitempty"`
	ReleaseBranches  []string    `json:"releaseBranches"`
	FeatureBranches  []string    `json:"featureBranches"`
	WorktreeBranches []string    `json:"worktreeBranches"`
	Issues           []string    `json:"issues"`
	CanMigrate       bool        `json:"canMigrate"`
	MigrationSteps   []string    `json:"migrationSteps"`
}

// DetectResult is the outcome of classifying a repository.
type DetectResult struct {
	Model          BranchModel `json:"model"`
	NeedsMigration bool        `json:"needsMigration"`
	Message        string      `json:"message"`
	Status         *Status     `json:"status"`
}

// MigrationPreview describes the planned migration actions without
// performing any of them. Empty BranchesToCreate and BranchesToRename
// together signal a no-op migration.
type MigrationPreview struct {
	BranchesToCreate []string `json:"branchesToCreate"`
	BranchesToRename []string `json:"branchesToRename"` // "old -> new" pairs
	Warnings         []string `json:"warnings"`
}

// MigrationResult reports the outcome of applying a migration. The
// operation is not atomic across branches: each action is attempted
// independently and failures are collected, never rolled back.
type MigrationResult struct {
	Model           BranchModel `json:"model"`
	BranchesCreated []string    `json:"branchesCreated"`
	BranchesRenamed []string    `json:"branchesRenamed"`
	Errors          []string    `json:"errors"`
	Warnings        []string    `json:"warnings"`
}

// FeatureBranch describes one task-associated branch.
type FeatureBranch struct {
	Name      string `json:"name"`
	TaskID    string `json:"taskId"`
	IsSubtask bool   `json:"isSubtask"`
}

// ValidateResult is the outcome of validating a branch name against the
// hierarchy rules. MergeTargets names the expected hierarchy parents
// (feature -> dev, release -> main, hotfix -> main and dev); nil when the
// name is syntactically valid but maps to no recognized convention.
type ValidateResult struct {
	Valid        bool     `json:"valid"`
	Error        string   `json:"error,omitempty"`
	MergeTargets []string `json:"mergeTargets,omitempty"`
}
