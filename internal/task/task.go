// Package task holds the metadata Meridian keeps about tasks: what kind of
// change each one represents and when it was merged. The release
// orchestrator consumes this metadata to compute version bumps and
// changelogs.
package task

import (
	"strings"
	"time"
)

// ChangeType categorizes a task's change in conventional-commit terms.
type ChangeType string

const (
	ChangeBreaking ChangeType = "breaking"
	ChangeFeature  ChangeType = "feature"
	ChangeFix      ChangeType = "fix"
	ChangeChore    ChangeType = "chore"
)

// Task is the metadata record for a single unit of work.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ChangeType  ChangeType `json:"changeType,omitempty"`
	Branch      string     `json:"branch,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	MergedAt    *time.Time `json:"mergedAt,omitempty"`
	ReleasedIn  string     `json:"releasedIn,omitempty"` // version that shipped this task
}

// Classify returns the task's change type, deriving it from the title when
// no explicit type was recorded.
func (t *Task) Classify() ChangeType {
	if t.ChangeType != "" {
		return t.ChangeType
	}
	return ClassifySubject(t.Title)
}

// ClassifySubject categorizes a conventional-commit-style subject line.
// A "!" after the type or a BREAKING CHANGE marker means breaking; "feat"
// means feature; "fix" means fix; everything else is a chore.
func ClassifySubject(subject string) ChangeType {
	s := strings.TrimSpace(subject)
	lower := strings.ToLower(s)

	if strings.Contains(lower, "breaking change") {
		return ChangeBreaking
	}

	kind, _, found := strings.Cut(lower, ":")
	if !found {
		return ChangeChore
	}

	// Strip an optional scope: "feat(api)!" -> "feat!"
	if idx := strings.Index(kind, "("); idx >= 0 {
		if end := strings.Index(kind, ")"); end > idx {
			kind = kind[:idx] + kind[end+1:]
		}
	}
	kind = strings.TrimSpace(kind)

	breaking := strings.HasSuffix(kind, "!")
	kind = strings.TrimSuffix(kind, "!")

	switch kind {
	case "feat", "feature":
		if breaking {
			return ChangeBreaking
		}
		return ChangeFeature
	case "fix", "bugfix", "hotfix":
		if breaking {
			return ChangeBreaking
		}
		return ChangeFix
	default:
		if breaking {
			return ChangeBreaking
		}
		return ChangeChore
	}
}
