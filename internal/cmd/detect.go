package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/meridian/internal/branchmodel"
	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/logging"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect a repository's branch model",
	Long: `Classify the repository's branching convention (flat, worktree-legacy,
hierarchical, or unknown) and report whether migration is needed.`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().StringVar(&repoDirFlag, "repo", "", "repository path (default: current directory)")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}

	cfg := config.Get()
	detector := branchmodel.NewDetector(repo, cfg.Branch, logging.NopLogger())

	result, err := detector.Detect(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Model: %s\n", result.Model)
	fmt.Printf("%s\n", result.Message)
	if result.Status.MainBranch != "" {
		fmt.Printf("Main branch: %s\n", result.Status.MainBranch)
	}
	if result.Status.DevBranch != "" {
		fmt.Printf("Dev branch: %s\n", result.Status.DevBranch)
	}
	printList("Feature branches", result.Status.FeatureBranches)
	printList("Release branches", result.Status.ReleaseBranches)
	printList("Legacy worktree branches", result.Status.WorktreeBranches)
	printList("Issues", result.Status.Issues)

	if result.NeedsMigration {
		if result.Status.CanMigrate {
			printList("Planned migration steps", result.Status.MigrationSteps)
			fmt.Println("\nRun 'meridian migrate' to apply")
		} else {
			fmt.Println("\nMigration is blocked; resolve the issues above first")
		}
	}
	return nil
}
