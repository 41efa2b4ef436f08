package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/logging"
	"github.com/meridian-labs/meridian/internal/merge"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <task-id>",
	Short: "Merge a task's feature branch into dev",
	Long: `Merge feature/<task-id> into the dev integration branch. Use --status or
--preview to inspect mergability without touching the working tree, and
--no-commit to stage the merge for review instead of committing it.`,
	Args: cobra.ExactArgs(1),
	RunE: runMerge,
}

var (
	mergeStatusFlag   bool
	mergePreviewFlag  bool
	mergeNoCommitFlag bool
)

func init() {
	mergeCmd.Flags().StringVar(&repoDirFlag, "repo", "", "repository path (default: current directory)")
	mergeCmd.Flags().BoolVar(&mergeStatusFlag, "status", false, "show mergability summary only")
	mergeCmd.Flags().BoolVar(&mergePreviewFlag, "preview", false, "show full merge preview only")
	mergeCmd.Flags().BoolVar(&mergeNoCommitFlag, "no-commit", false, "stage the merge without committing")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}

	cfg := config.Get()
	orch := merge.NewOrchestrator(repo, cfg.Branch, logging.NopLogger())
	taskID := args[0]

	if mergeStatusFlag {
		status, err := orch.Status(cmd.Context(), taskID)
		if err != nil {
			return err
		}
		if !status.BranchExists {
			fmt.Printf("No branch %s\n", merge.BranchForTask(taskID))
			return nil
		}
		fmt.Printf("Branch: %s\n", merge.BranchForTask(taskID))
		fmt.Printf("Commits ahead of dev: %d\n", status.CommitsAhead)
		fmt.Printf("Files changed: %d (+%d/-%d)\n", status.FilesChanged, status.Additions, status.Deletions)
		fmt.Printf("Conflicts: %v\n", status.HasConflicts)
		fmt.Printf("Can merge: %v\n", status.CanMergeToDev)
		return nil
	}

	if mergePreviewFlag {
		preview, err := orch.Preview(cmd.Context(), taskID)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", preview.SourceBranch, preview.TargetBranch)
		fmt.Printf("Commits ahead: %d, behind: %d\n", preview.CommitsAhead, preview.CommitsBehind)
		for _, f := range preview.ChangedFiles {
			fmt.Printf("  %s (+%d/-%d)\n", f.Path, f.Additions, f.Deletions)
		}
		for _, c := range preview.Conflicts {
			fmt.Printf("  CONFLICT %s\n", c.File)
		}
		if preview.UncommittedChanges {
			fmt.Println("Working copy has uncommitted changes")
		}
		fmt.Printf("Can merge: %v\n", preview.CanMerge)
		return nil
	}

	result, err := orch.Merge(cmd.Context(), taskID, merge.Options{NoCommit: mergeNoCommitFlag})
	if err != nil {
		return err
	}

	if result.Staged {
		fmt.Printf("Staged %d commit(s) from %s into %s\n",
			result.CommitsMerged, result.SourceBranch, result.TargetBranch)
		fmt.Printf("\nSuggested commit message:\n%s\n", result.SuggestedCommitMessage)
		return nil
	}
	fmt.Printf("Merged %d commit(s) from %s into %s\n",
		result.CommitsMerged, result.SourceBranch, result.TargetBranch)
	return nil
}
