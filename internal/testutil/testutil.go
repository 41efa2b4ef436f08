// Package testutil provides testing utilities for Meridian tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// SetupTestRepo creates a temporary git repository for testing.
// Returns the path to the repository. The repository has a single initial
// commit on main and is cleaned up when the test completes.
func SetupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	if err := runGit(dir, "init"); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}
	if err := runGit(dir, "config", "user.email", "test@meridian.dev"); err != nil {
		t.Fatalf("failed to configure git email: %v", err)
	}
	if err := runGit(dir, "config", "user.name", "Meridian Test"); err != nil {
		t.Fatalf("failed to configure git name: %v", err)
	}

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test Repository\n"), 0644); err != nil {
		t.Fatalf("failed to create README: %v", err)
	}
	if err := runGit(dir, "add", "."); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}
	if err := runGit(dir, "commit", "-m", "Initial commit"); err != nil {
		t.Fatalf("failed to create initial commit: %v", err)
	}

	// Some systems default to master
	if err := runGit(dir, "branch", "-M", "main"); err != nil {
		t.Fatalf("failed to rename branch to main: %v", err)
	}

	return dir
}

// SetupHierarchicalRepo creates a test repository following the three-tier
// convention: main plus a dev branch, with HEAD on dev.
func SetupHierarchicalRepo(t *testing.T) string {
	t.Helper()

	dir := SetupTestRepo(t)
	if err := runGit(dir, "checkout", "-b", "dev"); err != nil {
		t.Fatalf("failed to create dev branch: %v", err)
	}
	return dir
}

// SetupLegacyRepo creates a test repository in the legacy worktree
// convention: main plus the given legacy-prefixed branches, no dev branch.
func SetupLegacyRepo(t *testing.T, legacyBranches ...string) string {
	t.Helper()

	dir := SetupTestRepo(t)
	for _, branch := range legacyBranches {
		if err := runGit(dir, "branch", branch); err != nil {
			t.Fatalf("failed to create legacy branch %s: %v", branch, err)
		}
	}
	return dir
}

// CommitFile creates or updates a file and commits it.
func CommitFile(t *testing.T, repoDir, path, content, message string) {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	if err := runGit(repoDir, "add", path); err != nil {
		t.Fatalf("failed to stage file %s: %v", path, err)
	}
	if err := runGit(repoDir, "commit", "-m", message); err != nil {
		t.Fatalf("failed to commit file %s: %v", path, err)
	}
}

// CreateBranch creates a new branch in the repository without checking it out.
func CreateBranch(t *testing.T, repoDir, branch string) {
	t.Helper()

	if err := runGit(repoDir, "branch", branch); err != nil {
		t.Fatalf("failed to create branch %s: %v", branch, err)
	}
}

// CheckoutBranch switches to a branch, creating it if createNew is implied
// by a prior CreateBranch call.
func CheckoutBranch(t *testing.T, repoDir, branch string) {
	t.Helper()

	if err := runGit(repoDir, "checkout", branch); err != nil {
		t.Fatalf("failed to checkout branch %s: %v", branch, err)
	}
}

// CommitOnBranch checks out a branch, commits a file to it, and returns to
// the previously checked out branch.
func CommitOnBranch(t *testing.T, repoDir, branch, path, content, message string) {
	t.Helper()

	prev := GetCurrentBranch(t, repoDir)
	CheckoutBranch(t, repoDir, branch)
	CommitFile(t, repoDir, path, content, message)
	CheckoutBranch(t, repoDir, prev)
}

// GetCurrentBranch returns the current branch name.
func GetCurrentBranch(t *testing.T, repoDir string) string {
	t.Helper()

	output := gitOutput(t, repoDir, "rev-parse", "--abbrev-ref", "HEAD")
	return strings.TrimSpace(output)
}

// BranchExists reports whether a local branch exists in the repository.
func BranchExists(t *testing.T, repoDir, branch string) bool {
	t.Helper()

	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = repoDir
	return cmd.Run() == nil
}

// TagExists reports whether a tag exists in the repository.
func TagExists(t *testing.T, repoDir, tag string) bool {
	t.Helper()

	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", "refs/tags/"+tag)
	cmd.Dir = repoDir
	return cmd.Run() == nil
}

// GetCommitCount returns the number of commits reachable from HEAD.
func GetCommitCount(t *testing.T, repoDir string) int {
	t.Helper()

	output := strings.TrimSpace(gitOutput(t, repoDir, "rev-list", "--count", "HEAD"))
	count, err := strconv.Atoi(output)
	if err != nil {
		t.Fatalf("failed to parse commit count %q: %v", output, err)
	}
	return count
}

// HasUncommittedChanges returns true if the repository has uncommitted changes.
func HasUncommittedChanges(t *testing.T, repoDir string) bool {
	t.Helper()

	return strings.TrimSpace(gitOutput(t, repoDir, "status", "--porcelain")) != ""
}

// SkipIfNoGit skips the test if git is not installed.
func SkipIfNoGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// gitOutput runs a git command and returns its stdout, failing the test on error.
func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("git %s: %v", strings.Join(args, " "), err)
	}
	return string(output)
}

// runGit runs a git command in the specified directory.
func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Meridian Test",
		"GIT_AUTHOR_EMAIL=test@meridian.dev",
		"GIT_COMMITTER_NAME=Meridian Test",
		"GIT_COMMITTER_EMAIL=test@meridian.dev",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &gitError{args: args, output: output, err: err}
	}
	return nil
}

type gitError struct {
	args   []string
	output []byte
	err    error
}

func (e *gitError) Error() string {
	return "git " + strings.Join(e.args, " ") + ": " + e.err.Error() + "\n" + string(e.output)
}

func (e *gitError) Unwrap() error {
	return e.err
}
