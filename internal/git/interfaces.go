package git

// BranchReader provides read-only branch inspection.
type BranchReader interface {
	IsGitRepository() bool
	ListBranches() ([]string, error)
	BranchExists(name string) bool
	CurrentBranch() (string, error)
	LastCommit(ref string) (*CommitInfo, error)
}

// BranchWriter provides branch mutation operations.
type BranchWriter interface {
	CreateBranch(name, base string) error
	RenameBranch(oldName, newName string) error
	DeleteBranch(name string) error
	Checkout(branch string) error
}

// Merger provides merge analysis and execution.
type Merger interface {
	CountCommits(base, head string) (int, error)
	ConflictScan(target, source string) ([]Conflict, error)
	Merge(source string, opts MergeOptions) error
	AbortMerge() error
	CommitSubjects(base, head string) ([]string, error)
}

// DiffProvider provides diff inspection of refs and the working copy.
type DiffProvider interface {
	DiffStats(base, head string) ([]FileStat, error)
	DiffUnified(base, head string) (string, error)
	DiffWorkingCopy() (string, error)
	HasUncommittedChanges() (bool, error)
	ResetHard() error
}

// Tagger provides tag operations.
type Tagger interface {
	TagExists(name string) bool
	CreateTag(name, ref, message string) error
}

// Repository combines all git capabilities for consumers that need the
// full surface.
type Repository interface {
	BranchReader
	BranchWriter
	Merger
	DiffProvider
	Tagger
	RepoDir() string
}

// Compile-time checks that Client implements all interfaces.
var (
	_ BranchReader = (*Client)(nil)
	_ BranchWriter = (*Client)(nil)
	_ Merger       = (*Client)(nil)
	_ DiffProvider = (*Client)(nil)
	_ Tagger       = (*Client)(nil)
	_ Repository   = (*Client)(nil)
)
