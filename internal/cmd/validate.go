package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/meridian/internal/branchmodel"
)

var validateCmd = &cobra.Command{
	Use:   "validate <branch-name>",
	Short: "Validate a branch name against the hierarchy rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	result := branchmodel.ValidateBranchName(args[0])

	if !result.Valid {
		return fmt.Errorf("invalid branch name: %s", result.Error)
	}

	fmt.Printf("%s is valid\n", args[0])
	if len(result.MergeTargets) > 0 {
		fmt.Printf("Merges into: %s\n", strings.Join(result.MergeTargets, ", "))
	} else {
		fmt.Println("Name maps to no recognized convention (unclassified)")
	}
	return nil
}
