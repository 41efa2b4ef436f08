package merge

import "github.com/meridian-labs/meridian/internal/git"

// StatusResult is a per-branch mergability snapshot. It is derived fresh on
// every call and must be re-fetched after any merge, push, or branch
// mutation affecting the branch or dev.
type StatusResult struct {
	BranchExists  bool `json:"branchExists"`
	CanMergeToDev bool `json:"canMergeToDev"`
	HasConflicts  bool `json:"hasConflicts"`
	CommitsAhead  int  `json:"commitsAhead"`
	FilesChanged  int  `json:"filesChanged"`
	Additions     int  `json:"additions"`
	Deletions     int  `json:"deletions"`
}

// PreviewResult is the full merge preview: everything in StatusResult plus
// the conflict file list, per-file change stats, and advisory state about
// the working copy and dev drift.
type PreviewResult struct {
	SourceBranch  string         `json:"sourceBranch"`
	TargetBranch  string         `json:"targetBranch"`
	CommitsAhead  int            `json:"commitsAhead"`
	CommitsBehind int            `json:"commitsBehind"`
	FilesChanged  int            `json:"filesChanged"`
	Additions     int            `json:"additions"`
	Deletions     int            `json:"deletions"`
	Conflicts     []git.Conflict `json:"conflicts"`
	ChangedFiles  []git.FileStat `json:"changedFiles"`
	// UncommittedChanges reports dirty working-copy state. Advisory for a
	// committing merge; blocks a no-commit stage merge.
	UncommittedChanges bool `json:"uncommittedChanges"`
	CanMerge           bool `json:"canMerge"`
}

// Options controls how Merge performs the merge.
type Options struct {
	// NoCommit stages the merge into the target working tree without
	// creating a merge commit, for human review before committing.
	NoCommit bool `json:"noCommit"`
}

// Result reports a completed merge.
type Result struct {
	TaskID        string `json:"taskId"`
	SourceBranch  string `json:"sourceBranch"`
	TargetBranch  string `json:"targetBranch"`
	CommitsMerged int    `json:"commitsMerged"`
	Staged        bool   `json:"staged"`
	// SuggestedCommitMessage is generated from the task's accumulated
	// commits. Populated for staged merges so the reviewer has a starting
	// point.
	SuggestedCommitMessage string `json:"suggestedCommitMessage,omitempty"`
}
