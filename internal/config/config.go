// Package config defines the Meridian configuration, loaded via viper from
// a YAML config file, environment variables, and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete Meridian configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Branch  BranchConfig  `mapstructure:"branch"`
	Release ReleaseConfig `mapstructure:"release"`
	Logging LoggingConfig `mapstructure:"logging"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

// ServerConfig controls the WebSocket command server
type ServerConfig struct {
	// Addr is the listen address for the command channel (default: "127.0.0.1:7420")
	Addr string `mapstructure:"addr"`
	// ReadLimitBytes caps the size of a single incoming frame (default: 1 MiB)
	ReadLimitBytes int64 `mapstructure:"read_limit_bytes"`
	// AllowRemote permits non-loopback listen addresses (default: false).
	// The command channel carries no authentication, so remote exposure is opt-in.
	AllowRemote bool `mapstructure:"allow_remote"`
}

// BranchConfig controls branch naming conventions
type BranchConfig struct {
	// MainCandidates are tried in order when detecting the production branch
	// (default: ["main", "master"])
	MainCandidates []string `mapstructure:"main_candidates"`
	// DevBranch is the integration branch name (default: "dev")
	DevBranch string `mapstructure:"dev_branch"`
	// LegacyPrefixes are branch name prefixes recognized as the legacy
	// worktree convention during detection and migration
	// (default: ["agent/", "wt/", "worktree/", "work/"])
	LegacyPrefixes []string `mapstructure:"legacy_prefixes"`
}

// ReleaseConfig controls release candidate behavior
type ReleaseConfig struct {
	// TagPrefix is prepended to the version when tagging (default: "v")
	TagPrefix string `mapstructure:"tag_prefix"`
	// InitialVersion is used when a project has no releases yet (default: "0.1.0")
	InitialVersion string `mapstructure:"initial_version"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// PathsConfig controls where Meridian stores data
type PathsConfig struct {
	// DataDir is where project registry, task metadata, release state, and
	// logs are stored. Empty means $XDG_DATA_HOME/meridian (or
	// ~/.local/share/meridian). Supports ~ for home directory expansion.
	DataDir string `mapstructure:"data_dir"`
}

// ResolveDataDir returns the resolved data directory path.
// If DataDir is empty, the XDG data directory is used.
// If DataDir starts with ~, it expands to the user's home directory.
func (p *PathsConfig) ResolveDataDir() string {
	path := p.DataDir

	if path == "" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "meridian")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return ".meridian"
		}
		return filepath.Join(home, ".local", "share", "meridian")
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           "127.0.0.1:7420",
			ReadLimitBytes: 1 << 20,
			AllowRemote:    false,
		},
		Branch: BranchConfig{
			MainCandidates: []string{"main", "master"},
			DevBranch:      "dev",
			LegacyPrefixes: []string{"agent/", "wt/", "worktree/", "work/"},
		},
		Release: ReleaseConfig{
			TagPrefix:      "v",
			InitialVersion: "0.1.0",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Paths: PathsConfig{
			DataDir: "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("server.read_limit_bytes", defaults.Server.ReadLimitBytes)
	viper.SetDefault("server.allow_remote", defaults.Server.AllowRemote)

	viper.SetDefault("branch.main_candidates", defaults.Branch.MainCandidates)
	viper.SetDefault("branch.dev_branch", defaults.Branch.DevBranch)
	viper.SetDefault("branch.legacy_prefixes", defaults.Branch.LegacyPrefixes)

	viper.SetDefault("release.tag_prefix", defaults.Release.TagPrefix)
	viper.SetDefault("release.initial_version", defaults.Release.InitialVersion)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "meridian")
	}
	// Fall back to ~/.config/meridian
	home, err := os.UserHomeDir()
	if err != nil {
		return ".meridian"
	}
	return filepath.Join(home, ".config", "meridian")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
