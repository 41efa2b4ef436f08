package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/meridian/internal/config"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage the registry of repositories Meridian controls",
}

var projectAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Register a repository",
	Long: `Register a git working copy so the daemon can resolve its projectId.
Defaults to the current directory when no path is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	RunE:  runProjectList,
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <project-id>",
	Short: "Remove a project from the registry",
	Long:  `Remove a project from the registry. The repository on disk is left untouched.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectRemove,
}

var projectNameFlag string

func init() {
	projectAddCmd.Flags().StringVar(&projectNameFlag, "name", "", "project name (default: directory basename)")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path = cwd
	}

	cfg := config.Get()
	_, registry, _, err := stores(cfg)
	if err != nil {
		return err
	}

	p, err := registry.Add(cmd.Context(), path, projectNameFlag)
	if err != nil {
		return err
	}

	fmt.Printf("Registered project %s\n", p.Name)
	fmt.Printf("ID:   %s\n", p.ID)
	fmt.Printf("Path: %s\n", p.Path)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	_, registry, _, err := stores(cfg)
	if err != nil {
		return err
	}

	projects, err := registry.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("No projects registered")
		return nil
	}

	for _, p := range projects {
		fmt.Printf("%s  %s  %s\n", p.ID, p.Name, p.Path)
	}
	return nil
}

func runProjectRemove(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	_, registry, _, err := stores(cfg)
	if err != nil {
		return err
	}

	if err := registry.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed project %s\n", args[0])
	return nil
}
