package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/logging"
	"github.com/meridian-labs/meridian/internal/release"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Manage release candidates",
	Long: `Cut, promote, and abandon release candidates for the registered project
in the current repository. Release state persists in the data directory, so
terminal states survive daemon restarts.`,
}

var releaseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List releases, newest version first",
	RunE:  runReleaseList,
}

var releaseNextCmd = &cobra.Command{
	Use:   "next [task-id...]",
	Short: "Compute the next version from done tasks",
	RunE:  runReleaseNext,
}

var releaseCreateCmd = &cobra.Command{
	Use:   "create <version>",
	Short: "Cut release/<version> from dev",
	Args:  cobra.ExactArgs(1),
	RunE:  runReleaseCreate,
}

var releasePromoteCmd = &cobra.Command{
	Use:   "promote <version>",
	Short: "Merge a candidate into main, tag it, and back-merge to dev",
	Args:  cobra.ExactArgs(1),
	RunE:  runReleasePromote,
}

var releaseAbandonCmd = &cobra.Command{
	Use:   "abandon <version>",
	Short: "Abandon a candidate, keeping its branch for auditability",
	Args:  cobra.ExactArgs(1),
	RunE:  runReleaseAbandon,
}

var releaseChangelogCmd = &cobra.Command{
	Use:   "changelog <version> [task-id...]",
	Short: "Render markdown release notes grouped by change category",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReleaseChangelog,
}

var (
	releaseNotesFlag string
	releaseTasksFlag []string
)

func init() {
	releaseCmd.PersistentFlags().StringVar(&repoDirFlag, "repo", "", "repository path (default: current directory)")
	releaseCreateCmd.Flags().StringVar(&releaseNotesFlag, "notes", "", "release notes")
	releaseCreateCmd.Flags().StringSliceVar(&releaseTasksFlag, "tasks", nil, "task ids included in the release")

	releaseCmd.AddCommand(releaseListCmd)
	releaseCmd.AddCommand(releaseNextCmd)
	releaseCmd.AddCommand(releaseCreateCmd)
	releaseCmd.AddCommand(releasePromoteCmd)
	releaseCmd.AddCommand(releaseAbandonCmd)
	releaseCmd.AddCommand(releaseChangelogCmd)
	rootCmd.AddCommand(releaseCmd)
}

// releaseScope wires the release orchestrator for the registered project in
// the target repository.
func releaseScope(cmd *cobra.Command) (*release.Orchestrator, string, error) {
	cfg := config.Get()
	fs, registry, tasks, err := stores(cfg)
	if err != nil {
		return nil, "", err
	}

	p, err := resolveProject(cmd.Context(), registry)
	if err != nil {
		return nil, "", err
	}

	repo, err := openRepo()
	if err != nil {
		return nil, "", err
	}

	orch := release.NewOrchestrator(repo, fs, tasks, cfg, logging.NopLogger())
	return orch, p.ID, nil
}

func runReleaseList(cmd *cobra.Command, args []string) error {
	orch, projectID, err := releaseScope(cmd)
	if err != nil {
		return err
	}

	releases, err := orch.List(cmd.Context(), projectID)
	if err != nil {
		return err
	}
	if len(releases) == 0 {
		fmt.Println("No releases")
		return nil
	}

	for _, r := range releases {
		tag := "-"
		if r.Tag != "" {
			tag = r.Tag
		}
		fmt.Printf("%-12s %-10s %s\n", r.Version, r.Status, tag)
	}
	return nil
}

func runReleaseNext(cmd *cobra.Command, args []string) error {
	orch, projectID, err := releaseScope(cmd)
	if err != nil {
		return err
	}

	info, err := orch.NextVersion(cmd.Context(), projectID, args)
	if err != nil {
		return err
	}

	fmt.Printf("Current: %s\n", info.Current)
	fmt.Printf("Next:    %s (%s)\n", info.Next, info.BumpType)
	printList("Breaking changes", info.BreakingChanges)
	printList("Features", info.Features)
	printList("Fixes", info.Fixes)
	return nil
}

func runReleaseCreate(cmd *cobra.Command, args []string) error {
	orch, projectID, err := releaseScope(cmd)
	if err != nil {
		return err
	}

	rel, err := orch.Create(cmd.Context(), projectID, args[0], releaseNotesFlag, releaseTasksFlag)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s (%s)\n", rel.Branch, rel.Status)
	return nil
}

func runReleasePromote(cmd *cobra.Command, args []string) error {
	orch, projectID, err := releaseScope(cmd)
	if err != nil {
		return err
	}

	result, err := orch.Promote(cmd.Context(), projectID, args[0])
	if err != nil {
		return err
	}

	if result.Tag != "" {
		fmt.Printf("Promoted %s, tagged %s\n", result.Version, result.Tag)
	} else {
		fmt.Printf("Promoted %s (tagging failed, see warnings)\n", result.Version)
	}
	printList("Warnings", result.Warnings)
	return nil
}

func runReleaseAbandon(cmd *cobra.Command, args []string) error {
	orch, projectID, err := releaseScope(cmd)
	if err != nil {
		return err
	}

	rel, err := orch.Abandon(cmd.Context(), projectID, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Abandoned %s; branch %s kept for auditability\n", rel.Version, rel.Branch)
	return nil
}

func runReleaseChangelog(cmd *cobra.Command, args []string) error {
	orch, projectID, err := releaseScope(cmd)
	if err != nil {
		return err
	}

	changelog, err := orch.GenerateChangelog(cmd.Context(), projectID, args[0], args[1:])
	if err != nil {
		return err
	}
	fmt.Print(changelog)
	return nil
}
