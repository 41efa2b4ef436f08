package git

import "time"

// Conflict describes a single file that would conflict in a merge.
type Conflict struct {
	File string `json:"file"`
	Type string `json:"type"`
}

// FileStat describes per-file line changes between two refs.
type FileStat struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Binary    bool   `json:"binary,omitempty"`
}

// CommitInfo describes the most recent commit on a ref.
type CommitInfo struct {
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

// MergeOptions controls how Merge performs the merge.
type MergeOptions struct {
	// NoCommit stages the merge result without creating a merge commit,
	// leaving the changes for human review.
	NoCommit bool
	// Message is the merge commit message. Ignored when NoCommit is set.
	// When empty, git's default merge message is used.
	Message string
}
