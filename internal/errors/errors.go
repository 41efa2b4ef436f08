// Package errors provides centralized error definitions and error handling
// utilities for the Meridian codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - GitError: errors from the git operations layer (branches, merges, tags)
//   - MergeError: errors from the merge orchestrator
//   - ReleaseError: errors from the release orchestrator
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewGitError("merge failed", errors.ErrMergeBlocked).
//		WithRepository("/path/to/repo").
//		WithBranch("feature/task-42")
//
//	// Semantic error
//	err := errors.NewNotFoundError("project", "abc123")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrMergeBlocked) { ... }
//
//	var gitErr *errors.GitError
//	if errors.As(err, &gitErr) { ... }
//
//	if errors.IsUserFacing(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Git-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrBranchNotFound indicates that a branch could not be found.
	ErrBranchNotFound = New("branch not found")
	// ErrBranchExists indicates that a branch already exists.
	ErrBranchExists = New("branch already exists")
	// ErrBaseNotFound indicates that the requested base branch does not exist.
	ErrBaseNotFound = New("base branch not found")
	// ErrMergeConflict indicates that a merge conflict occurred.
	ErrMergeConflict = New("merge conflict")
	// ErrDirtyWorktree indicates that the working tree has uncommitted changes.
	ErrDirtyWorktree = New("working tree has uncommitted changes")
	// ErrTagExists indicates that a tag already exists.
	ErrTagExists = New("tag already exists")
)

// Merge-related sentinel errors
var (
	// ErrMergeBlocked indicates that a merge is blocked by conflicts.
	ErrMergeBlocked = New("merge blocked by conflicts")
	// ErrNothingToMerge indicates that the branch has no commits ahead of its target.
	ErrNothingToMerge = New("nothing to merge")
)

// Release-related sentinel errors
var (
	// ErrInvalidVersion indicates a malformed or non-increasing semver version.
	ErrInvalidVersion = New("invalid version")
	// ErrVersionExists indicates that a release branch or tag for the version already exists.
	ErrVersionExists = New("version already exists")
	// ErrReleaseTerminal indicates an operation on a promoted or abandoned release.
	ErrReleaseTerminal = New("release is in a terminal state")
	// ErrReleaseNotFound indicates that a release could not be found.
	ErrReleaseNotFound = New("release not found")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrOperationFailed indicates a general operation failure.
	ErrOperationFailed = New("operation failed")
	// ErrProjectNotFound indicates that a project is not registered.
	ErrProjectNotFound = New("project not found")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// MeridianError is the base interface for all Meridian errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type MeridianError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GitError represents errors from the git operations layer.
//
// Example:
//
//	err := errors.NewGitError("failed to create branch", errors.ErrBranchExists)
//	err = err.WithBranch("feature/task-42").WithRepository("/repos/app")
type GitError struct {
	baseError
	Branch     string
	Repository string
	GitOutput  string // Captured git command output
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// WithSeverity sets the error severity.
func (e *GitError) WithSeverity(s Severity) *GitError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// MergeError represents errors from the merge orchestrator.
//
// Example:
//
//	err := errors.NewMergeError("cannot merge", errors.ErrMergeBlocked).
//		WithTaskID("task-42").WithTarget("dev")
type MergeError struct {
	baseError
	TaskID string
	Source string
	Target string
}

// NewMergeError creates a new MergeError.
func NewMergeError(message string, cause error) *MergeError {
	return &MergeError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithTaskID adds a task ID to the error context.
func (e *MergeError) WithTaskID(id string) *MergeError {
	e.TaskID = id
	return e
}

// WithSource adds the source branch to the error context.
func (e *MergeError) WithSource(branch string) *MergeError {
	e.Source = branch
	return e
}

// WithTarget adds the target branch to the error context.
func (e *MergeError) WithTarget(branch string) *MergeError {
	e.Target = branch
	return e
}

// Error returns the formatted error message.
func (e *MergeError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Source != "" {
		parts = append(parts, fmt.Sprintf("source=%s", e.Source))
	}
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}

	prefix := "merge error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("merge error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *MergeError) Is(target error) bool {
	if _, ok := target.(*MergeError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ReleaseError represents errors from the release orchestrator.
//
// Example:
//
//	err := errors.NewReleaseError("cannot promote", errors.ErrReleaseTerminal).
//		WithVersion("1.2.0")
type ReleaseError struct {
	baseError
	Version string
	Phase   string
}

// NewReleaseError creates a new ReleaseError.
func NewReleaseError(message string, cause error) *ReleaseError {
	return &ReleaseError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithVersion adds a version to the error context.
func (e *ReleaseError) WithVersion(version string) *ReleaseError {
	e.Version = version
	return e
}

// WithPhase adds a promotion phase name to the error context.
func (e *ReleaseError) WithPhase(phase string) *ReleaseError {
	e.Phase = phase
	return e
}

// Error returns the formatted error message.
func (e *ReleaseError) Error() string {
	var parts []string
	if e.Version != "" {
		parts = append(parts, fmt.Sprintf("version=%s", e.Version))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}

	prefix := "release error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("release error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ReleaseError) Is(target error) bool {
	if _, ok := target.(*ReleaseError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("project", "abc123")
//	fmt.Println(err) // "project 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("branch", "feature/task-42")
//	fmt.Println(err) // "branch 'feature/task-42' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("branch name cannot contain whitespace")
//	err = err.WithField("branchName").WithValue("bad name")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to end users.
// This checks for:
//   - Errors implementing MeridianError with IsUserFacing() returning true
//   - Semantic errors (NotFoundError, AlreadyExistsError, ValidationError)
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    displayToUser(err.Error())
//	} else {
//	    displayToUser("An internal error occurred")
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var merr MeridianError
	if As(err, &merr) {
		return merr.IsUserFacing()
	}

	// Semantic errors are always user-facing
	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError

	if As(err, &notFound) || As(err, &alreadyExists) || As(err, &validation) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement MeridianError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var merr MeridianError
	if As(err, &merr) {
		return merr.Severity()
	}

	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific error
// (GitError, MergeError, or ReleaseError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var gitErr *GitError
	var mergeErr *MergeError
	var releaseErr *ReleaseError

	return As(err, &gitErr) || As(err, &mergeErr) || As(err, &releaseErr)
}

// IsPrecondition returns true if the error is a merge or release precondition
// failure that the caller can resolve by re-running the corresponding preview
// (ErrMergeBlocked, ErrNothingToMerge, ErrReleaseTerminal).
func IsPrecondition(err error) bool {
	return Is(err, ErrMergeBlocked) || Is(err, ErrNothingToMerge) || Is(err, ErrReleaseTerminal)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to process request")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to migrate project %s", projectID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
