package config

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "server.addr")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchNameRegex validates configured branch name components.
// Names must start with alphanumeric and can contain alphanumeric, hyphen,
// underscore, dot, or slash.
var branchNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateBranch()...)
	errors = append(errors, c.validateRelease()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validatePaths()...)

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	host, _, err := net.SplitHostPort(c.Server.Addr)
	if err != nil {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "must be a host:port address",
		})
	} else if !c.Server.AllowRemote {
		ip := net.ParseIP(host)
		loopback := host == "localhost" || (ip != nil && ip.IsLoopback())
		if !loopback {
			errors = append(errors, ValidationError{
				Field:   "server.addr",
				Value:   c.Server.Addr,
				Message: "non-loopback address requires server.allow_remote",
			})
		}
	}

	const minReadLimit = 1024 // 1KB
	if c.Server.ReadLimitBytes < minReadLimit {
		errors = append(errors, ValidationError{
			Field:   "server.read_limit_bytes",
			Value:   c.Server.ReadLimitBytes,
			Message: fmt.Sprintf("must be at least %d bytes", minReadLimit),
		})
	}

	return errors
}

// validateBranch validates the BranchConfig
func (c *Config) validateBranch() []ValidationError {
	var errors []ValidationError

	if len(c.Branch.MainCandidates) == 0 {
		errors = append(errors, ValidationError{
			Field:   "branch.main_candidates",
			Value:   c.Branch.MainCandidates,
			Message: "at least one candidate main branch is required",
		})
	}
	for i, name := range c.Branch.MainCandidates {
		if !branchNameRegex.MatchString(name) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("branch.main_candidates[%d]", i),
				Value:   name,
				Message: "invalid branch name",
			})
		}
	}

	if c.Branch.DevBranch == "" {
		errors = append(errors, ValidationError{
			Field:   "branch.dev_branch",
			Value:   c.Branch.DevBranch,
			Message: "cannot be empty",
		})
	} else if !branchNameRegex.MatchString(c.Branch.DevBranch) {
		errors = append(errors, ValidationError{
			Field:   "branch.dev_branch",
			Value:   c.Branch.DevBranch,
			Message: "invalid branch name",
		})
	}

	for i, prefix := range c.Branch.LegacyPrefixes {
		if !strings.HasSuffix(prefix, "/") {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("branch.legacy_prefixes[%d]", i),
				Value:   prefix,
				Message: "legacy prefixes must end with '/'",
			})
		}
	}

	return errors
}

// validateRelease validates the ReleaseConfig
func (c *Config) validateRelease() []ValidationError {
	var errors []ValidationError

	// Tag prefix may be empty (tags named exactly the version), but must not
	// contain characters git refuses in refs.
	if strings.ContainsAny(c.Release.TagPrefix, " ~^:?*[\\") {
		errors = append(errors, ValidationError{
			Field:   "release.tag_prefix",
			Value:   c.Release.TagPrefix,
			Message: "contains characters invalid in git refs",
		})
	}

	if c.Release.InitialVersion != "" {
		if !regexp.MustCompile(`^\d+\.\d+\.\d+$`).MatchString(c.Release.InitialVersion) {
			errors = append(errors, ValidationError{
				Field:   "release.initial_version",
				Value:   c.Release.InitialVersion,
				Message: "must be a plain X.Y.Z semver version",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	if c.Paths.DataDir != "" {
		path := c.Paths.DataDir

		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "paths.data_dir",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Most filesystems cap paths around 4096 bytes
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "paths.data_dir",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}
