// Package cmd implements the meridian command line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meridian-labs/meridian/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "meridian",
	Short: "Branch-model and release orchestration daemon",
	Long: `Meridian manages git repositories toward a three-tier branch model
(main -> release/* -> dev -> feature/*): it detects the current branching
convention, migrates legacy layouts, merges feature branches into dev, and
promotes release candidates to main with tagging and back-merge.

Run 'meridian serve' to start the WebSocket command daemon the desktop UI
connects to, or use the subcommands directly from a repository checkout.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/meridian/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/meridian")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MERIDIAN")
	// Replace dots with underscores for nested keys in env vars
	// e.g., MERIDIAN_SERVER_ADDR for server.addr
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
