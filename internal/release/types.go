package release

import (
	"time"

	"github.com/meridian-labs/meridian/internal/git"
)

// Status is the lifecycle state of a release. Candidate is the only
// non-terminal state: candidate -> promoted or candidate -> abandoned, and
// neither terminal state can be left again.
type Status string

const (
	StatusCandidate Status = "candidate"
	StatusPromoted  Status = "promoted"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusPromoted || s == StatusAbandoned
}

// Release is the persisted record of one release candidate.
type Release struct {
	ProjectID    string          `json:"projectId"`
	Version      string          `json:"version"`
	Branch       string          `json:"branch"`
	Status       Status          `json:"status"`
	Tag          string          `json:"tag,omitempty"`
	ReleaseNotes string          `json:"releaseNotes,omitempty"`
	TaskIDs      []string        `json:"taskIds,omitempty"`
	Commit       *git.CommitInfo `json:"commit,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	PromotedAt   *time.Time      `json:"promotedAt,omitempty"`
	AbandonedAt  *time.Time      `json:"abandonedAt,omitempty"`
}

// BumpType is the semver component a release increments.
type BumpType string

const (
	BumpMajor BumpType = "major"
	BumpMinor BumpType = "minor"
	BumpPatch BumpType = "patch"
)

// VersionInfo is the computed next version for a set of done tasks.
type VersionInfo struct {
	Current         string   `json:"current"`
	Next            string   `json:"next"`
	BumpType        BumpType `json:"bumpType"`
	BreakingChanges []string `json:"breakingChanges"`
	Features        []string `json:"features"`
	Fixes           []string `json:"fixes"`
}

// PromoteResult reports the outcome of promoting a release. Warnings carry
// the non-fatal failures (tagging, back-merge conflicts) that do not undo
// the promotion.
type PromoteResult struct {
	Version  string   `json:"version"`
	Tag      string   `json:"tag,omitempty"`
	Warnings []string `json:"warnings"`
}
