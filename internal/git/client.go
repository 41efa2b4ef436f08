package git

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-labs/meridian/internal/errors"
)

// Client performs git operations against a single repository working copy.
type Client struct {
	repoDir  string
	executor CommandExecutor
}

// NewClient creates a Client for the repository at repoDir using the real
// git CLI.
func NewClient(repoDir string) *Client {
	return &Client{repoDir: repoDir, executor: NewCLICommandExecutor()}
}

// NewClientWithExecutor creates a Client with a custom executor (for testing).
func NewClientWithExecutor(repoDir string, executor CommandExecutor) *Client {
	return &Client{repoDir: repoDir, executor: executor}
}

// RepoDir returns the repository working directory this client operates on.
func (c *Client) RepoDir() string {
	return c.repoDir
}

// IsGitRepository reports whether the client's directory is inside a git
// work tree.
func (c *Client) IsGitRepository() bool {
	return c.executor.RunQuiet(c.repoDir, "git", "rev-parse", "--git-dir") == nil
}

// ListBranches returns all local branch names, sorted by git's default
// refname ordering.
func (c *Client) ListBranches() ([]string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "for-each-ref", "--format=%(refname:short)", "refs/heads/")
	if err != nil {
		return nil, errors.NewGitError("for-each-ref", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}

	var branches []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

// BranchExists reports whether a local branch with the given name exists.
func (c *Client) BranchExists(name string) bool {
	return c.executor.RunQuiet(c.repoDir, "git", "rev-parse", "--verify", "--quiet", "refs/heads/"+name) == nil
}

// CurrentBranch returns the currently checked out branch name.
func (c *Client) CurrentBranch() (string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", errors.NewGitError("rev-parse", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// CreateBranch creates a new branch at the given base ref without checking
// it out.
func (c *Client) CreateBranch(name, base string) error {
	output, err := c.executor.Run(c.repoDir, "git", "branch", name, base)
	if err != nil {
		out := string(output)
		if strings.Contains(out, "already exists") {
			return errors.NewGitError("branch", errors.ErrBranchExists).
				WithBranch(name).
				WithRepository(c.repoDir)
		}
		if strings.Contains(out, "not a valid object name") || strings.Contains(out, "not a valid branch point") {
			return errors.NewGitError("branch", errors.ErrBaseNotFound).
				WithBranch(base).
				WithRepository(c.repoDir).
				WithGitOutput(out)
		}
		return errors.NewGitError("branch", err).
			WithBranch(name).
			WithRepository(c.repoDir).
			WithGitOutput(out)
	}
	return nil
}

// RenameBranch renames a local branch. The rename preserves the branch's
// history; only the ref moves.
func (c *Client) RenameBranch(oldName, newName string) error {
	output, err := c.executor.Run(c.repoDir, "git", "branch", "-m", oldName, newName)
	if err != nil {
		out := string(output)
		if strings.Contains(out, "already exists") {
			return errors.NewGitError("branch -m", errors.ErrBranchExists).
				WithBranch(newName).
				WithRepository(c.repoDir)
		}
		if strings.Contains(out, "doesn't exist") || strings.Contains(out, "not found") {
			return errors.NewGitError("branch -m", errors.ErrBranchNotFound).
				WithBranch(oldName).
				WithRepository(c.repoDir)
		}
		return errors.NewGitError("branch -m", err).
			WithBranch(oldName).
			WithRepository(c.repoDir).
			WithGitOutput(out)
	}
	return nil
}

// DeleteBranch force-deletes a local branch.
func (c *Client) DeleteBranch(name string) error {
	output, err := c.executor.Run(c.repoDir, "git", "branch", "-D", name)
	if err != nil {
		out := string(output)
		if strings.Contains(out, "not found") {
			return errors.NewGitError("branch -D", errors.ErrBranchNotFound).
				WithBranch(name).
				WithRepository(c.repoDir)
		}
		return errors.NewGitError("branch -D", err).
			WithBranch(name).
			WithRepository(c.repoDir).
			WithGitOutput(out)
	}
	return nil
}

// Checkout switches the working copy to the given branch.
func (c *Client) Checkout(branch string) error {
	output, err := c.executor.Run(c.repoDir, "git", "checkout", branch)
	if err != nil {
		out := string(output)
		if strings.Contains(out, "did not match any") {
			return errors.NewGitError("checkout", errors.ErrBranchNotFound).
				WithBranch(branch).
				WithRepository(c.repoDir)
		}
		return errors.NewGitError("checkout", err).
			WithBranch(branch).
			WithRepository(c.repoDir).
			WithGitOutput(out)
	}
	return nil
}

// CountCommits returns the number of commits reachable from head but not
// from base (base..head).
func (c *Client) CountCommits(base, head string) (int, error) {
	output, err := c.executor.Run(c.repoDir, "git", "rev-list", "--count", base+".."+head)
	if err != nil {
		return 0, errors.NewGitError("rev-list", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0, errors.NewGitError("rev-list", fmt.Errorf("unexpected output: %w", err)).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return count, nil
}

var treeOIDRegex = regexp.MustCompile(`^[0-9a-f]{40,64}$`)

// ConflictScan performs a dry-run merge of source into target using
// merge-tree, without touching the working copy or the index. It returns
// the list of files that would conflict; an empty list means the merge
// would apply cleanly.
func (c *Client) ConflictScan(target, source string) ([]Conflict, error) {
	output, err := c.executor.Run(c.repoDir, "git", "merge-tree", "--write-tree", "--name-only", "--no-messages", target, source)

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	// First line is the result tree OID whether or not the merge is clean.
	// merge-tree exits 1 on conflicts, so err alone does not mean failure.
	if len(lines) == 0 || !treeOIDRegex.MatchString(strings.TrimSpace(lines[0])) {
		if err != nil {
			return nil, errors.NewGitError("merge-tree", err).
				WithRepository(c.repoDir).
				WithGitOutput(string(output))
		}
		return nil, errors.NewGitError("merge-tree", fmt.Errorf("unexpected output")).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}

	var conflicts []Conflict
	for _, line := range lines[1:] {
		if line = strings.TrimSpace(line); line != "" {
			conflicts = append(conflicts, Conflict{File: line, Type: "content"})
		}
	}
	return conflicts, nil
}

// Merge merges source into the currently checked out branch with --no-ff.
// On conflict the merge is aborted and ErrMergeConflict is returned, leaving
// the working copy clean.
func (c *Client) Merge(source string, opts MergeOptions) error {
	args := []string{"merge", "--no-ff"}
	if opts.NoCommit {
		args = append(args, "--no-commit")
	} else if opts.Message != "" {
		args = append(args, "-m", opts.Message)
	}
	args = append(args, source)

	output, err := c.executor.Run(c.repoDir, "git", args...)
	if err != nil {
		out := string(output)
		if strings.Contains(out, "CONFLICT") || strings.Contains(out, "Automatic merge failed") {
			if abortOut, abortErr := c.executor.Run(c.repoDir, "git", "merge", "--abort"); abortErr != nil {
				return errors.NewGitError("merge --abort", abortErr).
					WithBranch(source).
					WithRepository(c.repoDir).
					WithGitOutput(string(abortOut)).
					WithSeverity(errors.SeverityCritical)
			}
			return errors.NewGitError("merge", errors.ErrMergeConflict).
				WithBranch(source).
				WithRepository(c.repoDir).
				WithGitOutput(out)
		}
		return errors.NewGitError("merge", err).
			WithBranch(source).
			WithRepository(c.repoDir).
			WithGitOutput(out)
	}
	return nil
}

// AbortMerge aborts an in-progress merge, restoring the pre-merge state.
func (c *Client) AbortMerge() error {
	output, err := c.executor.Run(c.repoDir, "git", "merge", "--abort")
	if err != nil {
		return errors.NewGitError("merge --abort", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return nil
}

// HasUncommittedChanges reports whether the working copy has staged or
// unstaged changes, including untracked files.
func (c *Client) HasUncommittedChanges() (bool, error) {
	output, err := c.executor.Run(c.repoDir, "git", "status", "--porcelain")
	if err != nil {
		return false, errors.NewGitError("status", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)) != "", nil
}

// DiffStats returns per-file additions and deletions for commits in
// base..head, using the merge base as the comparison point (three-dot diff).
func (c *Client) DiffStats(base, head string) ([]FileStat, error) {
	output, err := c.executor.Run(c.repoDir, "git", "diff", "--numstat", base+"..."+head)
	if err != nil {
		return nil, errors.NewGitError("diff --numstat", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}

	var stats []FileStat
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		stat := FileStat{Path: fields[2]}
		if fields[0] == "-" || fields[1] == "-" {
			// Binary files report "-" for both counts.
			stat.Binary = true
		} else {
			stat.Additions, _ = strconv.Atoi(fields[0])
			stat.Deletions, _ = strconv.Atoi(fields[1])
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// DiffUnified returns the full unified diff for commits in base..head.
func (c *Client) DiffUnified(base, head string) (string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "diff", base+"..."+head)
	if err != nil {
		return "", errors.NewGitError("diff", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return string(output), nil
}

// DiffWorkingCopy returns the unified diff of uncommitted changes against HEAD.
func (c *Client) DiffWorkingCopy() (string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "diff", "HEAD")
	if err != nil {
		return "", errors.NewGitError("diff HEAD", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return string(output), nil
}

// ResetHard discards all uncommitted changes, resetting the working copy
// and index to HEAD. Untracked files are left alone.
func (c *Client) ResetHard() error {
	output, err := c.executor.Run(c.repoDir, "git", "reset", "--hard", "HEAD")
	if err != nil {
		return errors.NewGitError("reset --hard", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}
	return nil
}

// CommitSubjects returns the subject line of every commit in base..head,
// newest first.
func (c *Client) CommitSubjects(base, head string) ([]string, error) {
	output, err := c.executor.Run(c.repoDir, "git", "log", "--pretty=format:%s", base+".."+head)
	if err != nil {
		return nil, errors.NewGitError("log", err).
			WithRepository(c.repoDir).
			WithGitOutput(string(output))
	}

	var subjects []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			subjects = append(subjects, line)
		}
	}
	return subjects, nil
}

// LastCommit returns the commit date and subject of the most recent commit
// on the given ref.
func (c *Client) LastCommit(ref string) (*CommitInfo, error) {
	output, err := c.executor.Run(c.repoDir, "git", "log", "-1", "--pretty=format:%cI%n%s", ref)
	if err != nil {
		out := string(output)
		if strings.Contains(out, "unknown revision") || strings.Contains(out, "bad revision") {
			return nil, errors.NewGitError("log", errors.ErrBranchNotFound).
				WithBranch(ref).
				WithRepository(c.repoDir)
		}
		return nil, errors.NewGitError("log", err).
			WithRepository(c.repoDir).
			WithGitOutput(out)
	}

	lines := strings.SplitN(strings.TrimSpace(string(output)), "\n", 2)
	info := &CommitInfo{}
	if t, err := time.Parse(time.RFC3339, lines[0]); err == nil {
		info.Date = t
	}
	if len(lines) > 1 {
		info.Message = lines[1]
	}
	return info, nil
}

// TagExists reports whether a tag with the given name exists.
func (c *Client) TagExists(name string) bool {
	return c.executor.RunQuiet(c.repoDir, "git", "rev-parse", "--verify", "--quiet", "refs/tags/"+name) == nil
}

// CreateTag creates an annotated tag at the given ref.
func (c *Client) CreateTag(name, ref, message string) error {
	output, err := c.executor.Run(c.repoDir, "git", "tag", "-a", name, "-m", message, ref)
	if err != nil {
		out := string(output)
		if strings.Contains(out, "already exists") {
			return errors.NewGitError("tag", errors.ErrTagExists).
				WithRepository(c.repoDir).
				WithGitOutput(out)
		}
		return errors.NewGitError("tag", err).
			WithRepository(c.repoDir).
			WithGitOutput(out)
	}
	return nil
}
