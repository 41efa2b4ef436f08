package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/meridian/internal/branchmodel"
	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/logging"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Create hierarchy-conforming branches",
}

var branchFeatureCmd = &cobra.Command{
	Use:   "feature <task-id>",
	Short: "Create feature/<task-id> from dev",
	Args:  cobra.ExactArgs(1),
	RunE:  runBranchFeature,
}

var branchReleaseCmd = &cobra.Command{
	Use:   "release <version>",
	Short: "Create release/<version> from dev",
	Args:  cobra.ExactArgs(1),
	RunE:  runBranchRelease,
}

var branchHotfixCmd = &cobra.Command{
	Use:   "hotfix <name> <tag>",
	Short: "Create hotfix/<name> from a released tag",
	Args:  cobra.ExactArgs(2),
	RunE:  runBranchHotfix,
}

var branchBaseFlag string

func init() {
	branchCmd.PersistentFlags().StringVar(&repoDirFlag, "repo", "", "repository path (default: current directory)")
	branchFeatureCmd.Flags().StringVar(&branchBaseFlag, "base", "", "base branch (default: dev)")
	branchReleaseCmd.Flags().StringVar(&branchBaseFlag, "base", "", "base branch (default: dev)")

	branchCmd.AddCommand(branchFeatureCmd)
	branchCmd.AddCommand(branchReleaseCmd)
	branchCmd.AddCommand(branchHotfixCmd)
	rootCmd.AddCommand(branchCmd)
}

func branchManager() (*branchmodel.Manager, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, err
	}
	cfg := config.Get()
	return branchmodel.NewManager(repo, cfg.Branch, logging.NopLogger()), nil
}

func runBranchFeature(cmd *cobra.Command, args []string) error {
	manager, err := branchManager()
	if err != nil {
		return err
	}

	branch, err := manager.CreateFeatureBranch(cmd.Context(), args[0], branchBaseFlag)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", branch)
	return nil
}

func runBranchRelease(cmd *cobra.Command, args []string) error {
	manager, err := branchManager()
	if err != nil {
		return err
	}

	branch, err := manager.CreateReleaseBranch(cmd.Context(), args[0], branchBaseFlag)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", branch)
	return nil
}

func runBranchHotfix(cmd *cobra.Command, args []string) error {
	manager, err := branchManager()
	if err != nil {
		return err
	}

	branch, err := manager.CreateHotfixBranch(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Created %s from tag %s\n", branch, args[1])
	return nil
}
