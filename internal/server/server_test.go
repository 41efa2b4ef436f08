package server

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/event"
	"github.com/meridian-labs/meridian/internal/logging"
	"github.com/meridian-labs/meridian/internal/project"
	"github.com/meridian-labs/meridian/internal/store"
	"github.com/meridian-labs/meridian/internal/task"
	"github.com/meridian-labs/meridian/internal/testutil"
)

// testEnv is a running server plus a connected client.
type testEnv struct {
	server   *Server
	registry *project.Registry
	ws       *websocket.Conn
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}

	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"

	registry := project.NewRegistry(fs, logging.NopLogger())
	srv := New(Deps{
		Config:   cfg,
		Registry: registry,
		Tasks:    task.NewStore(fs),
		Store:    fs,
		Bus:      event.NewBus(),
		Logger:   logging.NopLogger(),
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })

	return &testEnv{server: srv, registry: registry, ws: ws}
}

// addProject registers a repository and returns its project id.
func (e *testEnv) addProject(t *testing.T, repoDir string) string {
	t.Helper()
	p, err := e.registry.Add(context.Background(), repoDir, "")
	if err != nil {
		t.Fatalf("registry.Add() error: %v", err)
	}
	return p.ID
}

// call sends a command and reads frames until the matching response
// arrives, collecting any push frames seen along the way.
func (e *testEnv) call(t *testing.T, command string, payload any) (Response, []string) {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := Request{ID: "req-1", Command: command, Payload: raw}
	if err := e.ws.WriteJSON(req); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}

	var pushes []string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = e.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := e.ws.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error: %v", err)
		}

		var frame struct {
			ID    string `json:"id"`
			Event string `json:"event"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if frame.Event != "" {
			pushes = append(pushes, frame.Event)
			continue
		}

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if resp.ID != req.ID {
			t.Fatalf("response ID = %q, want %q", resp.ID, req.ID)
		}
		return resp, pushes
	}
	t.Fatal("no response before deadline")
	return Response{}, nil
}

// dataMap re-decodes a response's data into a map for field checks.
func dataMap(t *testing.T, resp Response) map[string]any {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	return m
}

func TestServer_UnknownCommand(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.call(t, "nope.nothing", map[string]string{})
	if resp.Success {
		t.Error("expected success=false for unknown command")
	}
	if !strings.Contains(resp.Error, "unknown command") {
		t.Errorf("error = %q, want mention of unknown command", resp.Error)
	}
}

func TestServer_UnknownProject(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.call(t, "branchModel.detect", projectPayload{ProjectID: "missing"})
	if resp.Success {
		t.Error("expected success=false for unregistered project")
	}
	if !strings.Contains(resp.Error, "not found") {
		t.Errorf("error = %q, want not-found message", resp.Error)
	}
}

func TestServer_DetectFlat(t *testing.T) {
	testutil.SkipIfNoGit(t)
	env := newTestEnv(t)
	projectID := env.addProject(t, testutil.SetupTestRepo(t))

	resp, _ := env.call(t, "branchModel.detect", projectPayload{ProjectID: projectID})
	if !resp.Success {
		t.Fatalf("detect failed: %s", resp.Error)
	}

	data := dataMap(t, resp)
	if data["model"] != "flat" {
		t.Errorf("model = %v, want flat", data["model"])
	}
	if data["needsMigration"] != true {
		t.Errorf("needsMigration = %v, want true", data["needsMigration"])
	}
}

func TestServer_MigratePublishesEvent(t *testing.T) {
	testutil.SkipIfNoGit(t)
	env := newTestEnv(t)
	repoDir := testutil.SetupTestRepo(t)
	projectID := env.addProject(t, repoDir)

	resp, pushes := env.call(t, "branchModel.migrate", projectPayload{ProjectID: projectID})
	if !resp.Success {
		t.Fatalf("migrate failed: %s", resp.Error)
	}

	data := dataMap(t, resp)
	if data["model"] != "hierarchical" {
		t.Errorf("model = %v, want hierarchical", data["model"])
	}
	if !testutil.BranchExists(t, repoDir, "dev") {
		t.Error("dev branch not created")
	}

	found := false
	for _, ev := range pushes {
		if ev == "model.migrated" {
			found = true
		}
	}
	if !found {
		t.Errorf("pushes = %v, want model.migrated frame", pushes)
	}
}

func TestServer_ValidateBranchName(t *testing.T) {
	testutil.SkipIfNoGit(t)
	env := newTestEnv(t)
	projectID := env.addProject(t, testutil.SetupTestRepo(t))

	resp, _ := env.call(t, "branchModel.validate", validatePayload{
		ProjectID:  projectID,
		BranchName: "feature/task-42",
	})
	if !resp.Success {
		t.Fatalf("validate failed: %s", resp.Error)
	}

	data := dataMap(t, resp)
	if data["valid"] != true {
		t.Errorf("valid = %v, want true", data["valid"])
	}

	resp, _ = env.call(t, "branchModel.validate", validatePayload{
		ProjectID:  projectID,
		BranchName: "bad name",
	})
	if !resp.Success {
		t.Fatalf("validate failed: %s", resp.Error)
	}
	if data := dataMap(t, resp); data["valid"] != false {
		t.Errorf("valid = %v, want false for name with whitespace", data["valid"])
	}
}

func TestServer_CreateFeatureBranch(t *testing.T) {
	testutil.SkipIfNoGit(t)
	env := newTestEnv(t)
	repoDir := testutil.SetupHierarchicalRepo(t)
	projectID := env.addProject(t, repoDir)

	resp, pushes := env.call(t, "branchModel.createFeature", createFeaturePayload{
		ProjectID: projectID,
		TaskID:    "task-42",
	})
	if !resp.Success {
		t.Fatalf("createFeature failed: %s", resp.Error)
	}

	data := dataMap(t, resp)
	if data["branchName"] != "feature/task-42" {
		t.Errorf("branchName = %v, want feature/task-42", data["branchName"])
	}
	if !testutil.BranchExists(t, repoDir, "feature/task-42") {
		t.Error("feature branch not created")
	}

	found := false
	for _, ev := range pushes {
		if ev == "branch.created" {
			found = true
		}
	}
	if !found {
		t.Errorf("pushes = %v, want branch.created frame", pushes)
	}
}

func TestServer_MergeFlow(t *testing.T) {
	testutil.SkipIfNoGit(t)
	env := newTestEnv(t)
	repoDir := testutil.SetupHierarchicalRepo(t)
	projectID := env.addProject(t, repoDir)

	testutil.CreateBranch(t, repoDir, "feature/task-7")
	testutil.CommitOnBranch(t, repoDir, "feature/task-7", "feature.txt", "content", "feat: add feature")

	resp, _ := env.call(t, "workspace.getStatus", taskPayload{ProjectID: projectID, TaskID: "task-7"})
	if !resp.Success {
		t.Fatalf("getStatus failed: %s", resp.Error)
	}
	status := dataMap(t, resp)
	if status["branchExists"] != true || status["canMergeToDev"] != true {
		t.Fatalf("status = %v, want mergeable branch", status)
	}

	resp, pushes := env.call(t, "workspace.merge", mergePayload{ProjectID: projectID, TaskID: "task-7"})
	if !resp.Success {
		t.Fatalf("merge failed: %s", resp.Error)
	}
	result := dataMap(t, resp)
	if result["commitsMerged"] != float64(1) {
		t.Errorf("commitsMerged = %v, want 1", result["commitsMerged"])
	}

	found := false
	for _, ev := range pushes {
		if ev == "merge.completed" {
			found = true
		}
	}
	if !found {
		t.Errorf("pushes = %v, want merge.completed frame", pushes)
	}

	// Fresh status must show nothing left to merge.
	resp, _ = env.call(t, "workspace.getStatus", taskPayload{ProjectID: projectID, TaskID: "task-7"})
	if !resp.Success {
		t.Fatalf("getStatus failed: %s", resp.Error)
	}
	if after := dataMap(t, resp); after["commitsAhead"] != float64(0) {
		t.Errorf("commitsAhead after merge = %v, want 0", after["commitsAhead"])
	}
}

func TestServer_GetDiff(t *testing.T) {
	testutil.SkipIfNoGit(t)
	env := newTestEnv(t)
	repoDir := testutil.SetupHierarchicalRepo(t)
	projectID := env.addProject(t, repoDir)

	testutil.CreateBranch(t, repoDir, "feature/task-9")
	testutil.CommitOnBranch(t, repoDir, "feature/task-9", "diffme.txt", "hello diff\n", "feat: add file")

	resp, _ := env.call(t, "workspace.getDiff", taskPayload{ProjectID: projectID, TaskID: "task-9"})
	if !resp.Success {
		t.Fatalf("getDiff failed: %s", resp.Error)
	}

	data := dataMap(t, resp)
	diff, _ := data["diff"].(string)
	if !strings.Contains(diff, "diffme.txt") {
		t.Errorf("diff does not mention changed file:\n%s", diff)
	}
	if data["sourceBranch"] != "feature/task-9" || data["targetBranch"] != "dev" {
		t.Errorf("unexpected branches in diff result: %v", data)
	}
}

func TestServer_DiscardRequiresConfirm(t *testing.T) {
	testutil.SkipIfNoGit(t)
	env := newTestEnv(t)
	projectID := env.addProject(t, testutil.SetupHierarchicalRepo(t))

	resp, _ := env.call(t, "workspace.discard", discardPayload{
		ProjectID: projectID,
		TaskID:    "task-1",
		Confirm:   false,
	})
	if resp.Success {
		t.Error("expected discard without confirm to fail")
	}
	if !strings.Contains(resp.Error, "confirm") {
		t.Errorf("error = %q, want mention of confirm", resp.Error)
	}
}

func TestServer_ReleaseLifecycle(t *testing.T) {
	testutil.SkipIfNoGit(t)
	env := newTestEnv(t)
	repoDir := testutil.SetupHierarchicalRepo(t)
	projectID := env.addProject(t, repoDir)

	testutil.CommitOnBranch(t, repoDir, "dev", "change.txt", "work", "feat: dev work")

	resp, pushes := env.call(t, "release.create", releaseCreatePayload{
		ProjectID: projectID,
		Version:   "1.0.0",
	})
	if !resp.Success {
		t.Fatalf("release.create failed: %s", resp.Error)
	}
	if data := dataMap(t, resp); data["status"] != "candidate" {
		t.Errorf("status = %v, want candidate", data["status"])
	}
	found := false
	for _, ev := range pushes {
		if ev == "release.created" {
			found = true
		}
	}
	if !found {
		t.Errorf("pushes = %v, want release.created frame", pushes)
	}

	resp, _ = env.call(t, "release.promote", releaseVersionPayload{ProjectID: projectID, Version: "1.0.0"})
	if !resp.Success {
		t.Fatalf("release.promote failed: %s", resp.Error)
	}
	if !testutil.TagExists(t, repoDir, "v1.0.0") {
		t.Error("tag v1.0.0 not created")
	}

	// Terminal state: abandoning a promoted release must fail.
	resp, _ = env.call(t, "release.abandon", releaseVersionPayload{ProjectID: projectID, Version: "1.0.0"})
	if resp.Success {
		t.Error("expected abandon after promote to fail")
	}
}

func TestServer_ProjectCommands(t *testing.T) {
	testutil.SkipIfNoGit(t)
	env := newTestEnv(t)
	repoDir := testutil.SetupTestRepo(t)

	resp, _ := env.call(t, "project.add", projectAddPayload{Path: repoDir, Name: "demo"})
	if !resp.Success {
		t.Fatalf("project.add failed: %s", resp.Error)
	}
	added := dataMap(t, resp)
	id, _ := added["id"].(string)
	if id == "" {
		t.Fatal("project.add returned no id")
	}

	resp, _ = env.call(t, "project.list", map[string]string{})
	if !resp.Success {
		t.Fatalf("project.list failed: %s", resp.Error)
	}

	resp, _ = env.call(t, "project.remove", projectPayload{ProjectID: id})
	if !resp.Success {
		t.Fatalf("project.remove failed: %s", resp.Error)
	}

	resp, _ = env.call(t, "branchModel.detect", projectPayload{ProjectID: id})
	if resp.Success {
		t.Error("expected detect to fail after project removal")
	}
}

func TestServer_MalformedFrameClosesConnection(t *testing.T) {
	env := newTestEnv(t)

	if err := env.ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("WriteMessage() error: %v", err)
	}

	_ = env.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := env.ws.ReadMessage()
	if err == nil {
		t.Fatal("expected connection to close after malformed frame")
	}
	if !websocket.IsCloseError(err, websocket.CloseInvalidFramePayloadData) {
		// Some peers surface the close as an unexpected EOF; either way
		// the connection must be gone.
		t.Logf("close error: %v", err)
	}
}

func TestServer_RejectsRemoteAddrWithoutOptIn(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}

	cfg := config.Default()
	cfg.Server.Addr = "0.0.0.0:0"

	srv := New(Deps{
		Config:   cfg,
		Registry: project.NewRegistry(fs, logging.NopLogger()),
		Tasks:    task.NewStore(fs),
		Store:    fs,
		Bus:      event.NewBus(),
		Logger:   logging.NopLogger(),
	})
	if err := srv.Start(); err == nil {
		t.Error("expected Start to refuse non-loopback address")
		_ = srv.Shutdown(context.Background())
	}
}
