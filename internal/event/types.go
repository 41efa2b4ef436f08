// Package event defines the events Meridian components publish on the bus.
// The command server forwards these to connected clients as push frames, so
// a UI stays current without polling.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "branch.created", "release.promoted")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Branch Events
// -----------------------------------------------------------------------------

// BranchCreatedEvent is emitted when Meridian creates a branch.
type BranchCreatedEvent struct {
	baseEvent
	ProjectID string // Project the branch belongs to
	Branch    string // Full branch name
	Base      string // Ref the branch was created from
}

// NewBranchCreatedEvent creates a BranchCreatedEvent.
func NewBranchCreatedEvent(projectID, branch, base string) BranchCreatedEvent {
	return BranchCreatedEvent{
		baseEvent: newBaseEvent("branch.created"),
		ProjectID: projectID,
		Branch:    branch,
		Base:      base,
	}
}

// ModelMigratedEvent is emitted when a repository's branch model is migrated
// to the hierarchical convention.
type ModelMigratedEvent struct {
	baseEvent
	ProjectID string // Project that was migrated
	FromModel string // Model before migration
	Renamed   int    // Number of legacy branches renamed
	Warnings  int    // Number of non-fatal issues recorded
}

// NewModelMigratedEvent creates a ModelMigratedEvent.
func NewModelMigratedEvent(projectID, fromModel string, renamed, warnings int) ModelMigratedEvent {
	return ModelMigratedEvent{
		baseEvent: newBaseEvent("model.migrated"),
		ProjectID: projectID,
		FromModel: fromModel,
		Renamed:   renamed,
		Warnings:  warnings,
	}
}

// RefsChangedEvent is emitted when branch refs change on disk, whether from
// Meridian's own operations or external git activity.
type RefsChangedEvent struct {
	baseEvent
	ProjectID string // Project whose refs changed
}

// NewRefsChangedEvent creates a RefsChangedEvent.
func NewRefsChangedEvent(projectID string) RefsChangedEvent {
	return RefsChangedEvent{
		baseEvent: newBaseEvent("refs.changed"),
		ProjectID: projectID,
	}
}

// -----------------------------------------------------------------------------
// Project Events
// -----------------------------------------------------------------------------

// ProjectAddedEvent is emitted when a repository is registered.
type ProjectAddedEvent struct {
	baseEvent
	ProjectID string // New project's id
	Path      string // Working-copy path
}

// NewProjectAddedEvent creates a ProjectAddedEvent.
func NewProjectAddedEvent(projectID, path string) ProjectAddedEvent {
	return ProjectAddedEvent{
		baseEvent: newBaseEvent("project.added"),
		ProjectID: projectID,
		Path:      path,
	}
}

// ProjectRemovedEvent is emitted when a project is removed from the registry.
type ProjectRemovedEvent struct {
	baseEvent
	ProjectID string // Removed project's id
}

// NewProjectRemovedEvent creates a ProjectRemovedEvent.
func NewProjectRemovedEvent(projectID string) ProjectRemovedEvent {
	return ProjectRemovedEvent{
		baseEvent: newBaseEvent("project.removed"),
		ProjectID: projectID,
	}
}

// -----------------------------------------------------------------------------
// Merge Events
// -----------------------------------------------------------------------------

// MergeCompletedEvent is emitted when a task branch is merged into dev.
type MergeCompletedEvent struct {
	baseEvent
	ProjectID string // Project the merge happened in
	TaskID    string // Task whose branch was merged
	Source    string // Source branch
	Target    string // Target branch
	Commits   int    // Number of commits merged
	Staged    bool   // True when the merge was staged without committing
}

// NewMergeCompletedEvent creates a MergeCompletedEvent.
func NewMergeCompletedEvent(projectID, taskID, source, target string, commits int, staged bool) MergeCompletedEvent {
	return MergeCompletedEvent{
		baseEvent: newBaseEvent("merge.completed"),
		ProjectID: projectID,
		TaskID:    taskID,
		Source:    source,
		Target:    target,
		Commits:   commits,
		Staged:    staged,
	}
}

// -----------------------------------------------------------------------------
// Release Events
// -----------------------------------------------------------------------------

// ReleaseCreatedEvent is emitted when a release candidate branch is created.
type ReleaseCreatedEvent struct {
	baseEvent
	ProjectID string // Project the release belongs to
	Version   string // Candidate version (no tag prefix)
	Branch    string // Release branch name
}

// NewReleaseCreatedEvent creates a ReleaseCreatedEvent.
func NewReleaseCreatedEvent(projectID, version, branch string) ReleaseCreatedEvent {
	return ReleaseCreatedEvent{
		baseEvent: newBaseEvent("release.created"),
		ProjectID: projectID,
		Version:   version,
		Branch:    branch,
	}
}

// ReleasePromotedEvent is emitted when a release candidate is promoted to
// production.
type ReleasePromotedEvent struct {
	baseEvent
	ProjectID string   // Project the release belongs to
	Version   string   // Promoted version
	Tag       string   // Tag created on main (empty when tagging failed)
	Warnings  []string // Non-fatal issues from promotion
}

// NewReleasePromotedEvent creates a ReleasePromotedEvent.
func NewReleasePromotedEvent(projectID, version, tag string, warnings []string) ReleasePromotedEvent {
	return ReleasePromotedEvent{
		baseEvent: newBaseEvent("release.promoted"),
		ProjectID: projectID,
		Version:   version,
		Tag:       tag,
		Warnings:  warnings,
	}
}

// ReleaseAbandonedEvent is emitted when a release candidate is abandoned.
type ReleaseAbandonedEvent struct {
	baseEvent
	ProjectID     string // Project the release belongs to
	Version       string // Abandoned version
	BranchDeleted bool   // Whether the release branch was deleted
}

// NewReleaseAbandonedEvent creates a ReleaseAbandonedEvent.
func NewReleaseAbandonedEvent(projectID, version string, branchDeleted bool) ReleaseAbandonedEvent {
	return ReleaseAbandonedEvent{
		baseEvent:     newBaseEvent("release.abandoned"),
		ProjectID:     projectID,
		Version:       version,
		BranchDeleted: branchDeleted,
	}
}
