package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/meridian/internal/branchmodel"
	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate a repository to the hierarchical branch model",
	Long: `Create the dev integration branch and rename legacy worktree branches to
feature/<task-id>. Each branch action is applied independently; failures are
reported per branch and never roll back completed steps.`,
	RunE: runMigrate,
}

var migratePreviewFlag bool

func init() {
	migrateCmd.Flags().StringVar(&repoDirFlag, "repo", "", "repository path (default: current directory)")
	migrateCmd.Flags().BoolVar(&migratePreviewFlag, "preview", false, "show the migration plan without applying it")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}

	cfg := config.Get()
	migrator := branchmodel.NewMigrator(repo, cfg.Branch, logging.NopLogger())

	if migratePreviewFlag {
		preview, err := migrator.Preview(cmd.Context())
		if err != nil {
			return err
		}
		if len(preview.BranchesToCreate) == 0 && len(preview.BranchesToRename) == 0 {
			fmt.Println("Nothing to migrate")
			return nil
		}
		printList("Branches to create", preview.BranchesToCreate)
		printList("Branches to rename", preview.BranchesToRename)
		printList("Warnings", preview.Warnings)
		return nil
	}

	result, err := migrator.Migrate(cmd.Context())
	if err != nil {
		return err
	}

	if len(result.BranchesCreated) == 0 && len(result.BranchesRenamed) == 0 && len(result.Errors) == 0 {
		fmt.Println("Repository already follows the hierarchical model")
		return nil
	}

	printList("Created", result.BranchesCreated)
	printList("Renamed", result.BranchesRenamed)
	printList("Warnings", result.Warnings)
	printList("Errors", result.Errors)
	fmt.Printf("Model: %s\n", result.Model)

	if len(result.Errors) > 0 {
		return fmt.Errorf("migration completed with %d error(s)", len(result.Errors))
	}
	return nil
}
