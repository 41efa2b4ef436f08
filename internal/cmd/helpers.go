package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/logging"
	"github.com/meridian-labs/meridian/internal/project"
	"github.com/meridian-labs/meridian/internal/store"
	"github.com/meridian-labs/meridian/internal/task"
)

// repoDirFlag is shared by the repository-scoped subcommands; empty means
// the current working directory.
var repoDirFlag string

// resolveRepoDir returns the repository directory a command operates on,
// as an absolute path.
func resolveRepoDir() (string, error) {
	dir := repoDirFlag
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid repository path %s: %w", dir, err)
	}
	return abs, nil
}

// openRepo resolves and validates the target repository.
func openRepo() (*git.Client, error) {
	dir, err := resolveRepoDir()
	if err != nil {
		return nil, err
	}
	repo := git.NewClient(dir)
	if !repo.IsGitRepository() {
		return nil, fmt.Errorf("%s is not a git repository", dir)
	}
	return repo, nil
}

// stores opens the shared data directory and returns the file-backed
// registry and task store.
func stores(cfg *config.Config) (*store.FileStore, *project.Registry, *task.Store, error) {
	fs, err := store.NewFileStore(cfg.Paths.ResolveDataDir())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	return fs, project.NewRegistry(fs, logging.NopLogger()), task.NewStore(fs), nil
}

// resolveProject maps the target repository back to its registered project.
func resolveProject(ctx context.Context, registry *project.Registry) (*project.Project, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, err
	}
	p, err := registry.GetByPath(ctx, repo.RepoDir())
	if err != nil {
		return nil, fmt.Errorf("repository is not registered; run 'meridian project add %s' first", repo.RepoDir())
	}
	return p, nil
}

// printList prints a labelled string list, skipping the label when empty.
func printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}
