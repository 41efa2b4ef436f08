package server

import (
	"encoding/json"
	"time"
)

// Request is a single command frame from a client. ID is client-chosen and
// echoed back on the response so callers can correlate in-flight commands.
type Request struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the reply to a Request. Exactly one of Data or Error is set.
type Response struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Push is an unsolicited server-to-client frame carrying a bus event, so a
// UI can invalidate cached branch state without polling.
type Push struct {
	Event string    `json:"event"`
	Time  time.Time `json:"ts"`
	Data  any       `json:"data"`
}

// -----------------------------------------------------------------------------
// Command payloads
// -----------------------------------------------------------------------------

type projectPayload struct {
	ProjectID string `json:"projectId"`
}

type validatePayload struct {
	ProjectID  string `json:"projectId"`
	BranchName string `json:"branchName"`
}

type createFeaturePayload struct {
	ProjectID  string `json:"projectId"`
	TaskID     string `json:"taskId"`
	BaseBranch string `json:"baseBranch,omitempty"`
}

type createReleasePayload struct {
	ProjectID  string `json:"projectId"`
	Version    string `json:"version"`
	BaseBranch string `json:"baseBranch,omitempty"`
}

type createHotfixPayload struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Tag       string `json:"tag"`
}

type taskPayload struct {
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
}

type mergePayload struct {
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
	NoCommit  bool   `json:"noCommit,omitempty"`
}

type discardPayload struct {
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
	Confirm   bool   `json:"confirm"`
}

type ensureDevPayload struct {
	ProjectID  string `json:"projectId"`
	BaseBranch string `json:"baseBranch,omitempty"`
}

type releaseCreatePayload struct {
	ProjectID    string   `json:"projectId"`
	Version      string   `json:"version"`
	ReleaseNotes string   `json:"releaseNotes,omitempty"`
	TaskIDs      []string `json:"taskIds,omitempty"`
}

type releaseVersionPayload struct {
	ProjectID string `json:"projectId"`
	Version   string `json:"version"`
}

type nextVersionPayload struct {
	ProjectID   string   `json:"projectId"`
	DoneTaskIDs []string `json:"doneTaskIds,omitempty"`
}

type changelogPayload struct {
	ProjectID string   `json:"projectId"`
	Version   string   `json:"version"`
	TaskIDs   []string `json:"taskIds,omitempty"`
}

type projectAddPayload struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// branchNameResult is the response body for the branch-creation commands.
type branchNameResult struct {
	BranchName string `json:"branchName"`
}

// diffResult is the response body for workspace.getDiff.
type diffResult struct {
	TaskID       string `json:"taskId"`
	SourceBranch string `json:"sourceBranch"`
	TargetBranch string `json:"targetBranch"`
	Diff         string `json:"diff"`
}

// ensureDevResult is the response body for workspace.ensureDev.
type ensureDevResult struct {
	DevBranch string `json:"devBranch"`
	Created   bool   `json:"created"`
}

// discardResult is the response body for workspace.discard.
type discardResult struct {
	Discarded bool `json:"discarded"`
}
