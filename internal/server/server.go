// Package server exposes the orchestrators over a WebSocket command channel.
// Clients send {id, command, payload} frames and receive {id, success,
// data|error} responses; bus events are forwarded to every connected client
// as {event, ts, data} push frames.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meridian-labs/meridian/internal/branchmodel"
	"github.com/meridian-labs/meridian/internal/config"
	"github.com/meridian-labs/meridian/internal/errors"
	"github.com/meridian-labs/meridian/internal/event"
	"github.com/meridian-labs/meridian/internal/git"
	"github.com/meridian-labs/meridian/internal/locks"
	"github.com/meridian-labs/meridian/internal/logging"
	"github.com/meridian-labs/meridian/internal/merge"
	"github.com/meridian-labs/meridian/internal/project"
	"github.com/meridian-labs/meridian/internal/release"
	"github.com/meridian-labs/meridian/internal/store"
	"github.com/meridian-labs/meridian/internal/task"
)

// Deps bundles the collaborators a Server needs.
type Deps struct {
	Config   *config.Config
	Registry *project.Registry
	Tasks    *task.Store
	Store    *store.FileStore
	Bus      *event.Bus
	Logger   *logging.Logger
}

// handler processes one command. Handlers for git-mutating commands take
// the per-repository write lock themselves, keyed by project id, so writes
// to one working copy never interleave.
type handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Server is the WebSocket command server.
type Server struct {
	cfg      *config.Config
	registry *project.Registry
	tasks    *task.Store
	fs       *store.FileStore
	bus      *event.Bus
	logger   *logging.Logger

	handlers map[string]handler
	upgrader websocket.Upgrader

	httpSrv  *http.Server
	listener net.Listener

	repoLocks *locks.Registry
}

// New creates a Server. Call Start to begin listening.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	s := &Server{
		cfg:      deps.Config,
		registry: deps.Registry,
		tasks:    deps.Tasks,
		fs:       deps.Store,
		bus:      deps.Bus,
		logger:   logger,
		upgrader: websocket.Upgrader{
			// The channel is loopback-only by default and carries no
			// credentials, so cross-origin checks add nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		repoLocks: locks.NewRegistry(),
	}
	s.handlers = s.commandTable()
	return s
}

// Start begins listening on the configured address. Non-loopback addresses
// are rejected unless server.allow_remote is set, since the command channel
// carries no authentication.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if !s.cfg.Server.AllowRemote && !isLoopback(addr) {
		return errors.NewValidationError("refusing non-loopback listen address without allow_remote").
			WithField("server.addr").
			WithValue(addr)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Handler: mux}

	s.logger.Info("command server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("command server stopped", "error", err.Error())
		}
	}()
	return nil
}

// Addr returns the actual listen address, useful when the configured
// address had port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and closes existing ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// lockRepo acquires the write lock for a project's working copy and returns
// the release function. Mutating handlers hold this for the duration of the
// git operation sequence.
func (s *Server) lockRepo(projectID, command string) func() {
	if holder, ok := s.repoLocks.Holder(projectID); ok {
		s.logger.Debug("waiting for repository lock",
			"project_id", projectID, "held_by", holder, "command", command)
	}
	return s.repoLocks.Acquire(projectID, command)
}

// -----------------------------------------------------------------------------
// Connection handling
// -----------------------------------------------------------------------------

// conn wraps a websocket connection with a write mutex, since responses and
// forwarded push frames are written from different goroutines.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	c := &conn{ws: ws}
	if limit := s.cfg.Server.ReadLimitBytes; limit > 0 {
		ws.SetReadLimit(limit)
	}

	// Forward every bus event to this client as a push frame.
	subID := s.bus.SubscribeAll(func(e event.Event) {
		if err := c.writeJSON(Push{Event: e.EventType(), Time: e.Timestamp(), Data: e}); err != nil {
			s.logger.Debug("push frame dropped", "event", e.EventType(), "error", err.Error())
		}
	})
	defer s.bus.Unsubscribe(subID)
	defer func() { _ = ws.Close() }()

	s.logger.Debug("client connected", "remote", ws.RemoteAddr().String())

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			s.logger.Debug("client disconnected", "remote", ws.RemoteAddr().String())
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			// A peer speaking something other than the frame protocol
			// gets a close frame rather than an error response it may
			// not understand.
			msg := websocket.FormatCloseMessage(websocket.CloseInvalidFramePayloadData, "malformed request frame")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}

		resp := s.dispatch(r.Context(), &req)
		if err := c.writeJSON(resp); err != nil {
			return
		}
	}
}

// dispatch routes a request to its handler. Handler errors become
// success:false responses; they never terminate the connection.
func (s *Server) dispatch(ctx context.Context, req *Request) Response {
	logger := s.logger.WithCommand(req.Command)

	h, ok := s.handlers[req.Command]
	if !ok {
		logger.Warn("unknown command")
		return Response{ID: req.ID, Success: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
	}

	data, err := h(ctx, req.Payload)
	if err != nil {
		logger.Warn("command failed", "error", err.Error())
		return Response{ID: req.ID, Success: false, Error: err.Error()}
	}

	logger.Debug("command completed")
	return Response{ID: req.ID, Success: true, Data: data}
}

// -----------------------------------------------------------------------------
// Project resolution
// -----------------------------------------------------------------------------

// scope is the set of per-project components for one command. Components are
// built fresh per call: the git repository is the authoritative state and
// nothing is cached across commands.
type scope struct {
	project  *project.Project
	repo     *git.Client
	detector *branchmodel.Detector
	migrator *branchmodel.Migrator
	branches *branchmodel.Manager
	merges   *merge.Orchestrator
	releases *release.Orchestrator
}

func (s *Server) scopeFor(ctx context.Context, projectID string) (*scope, error) {
	if projectID == "" {
		return nil, errors.NewValidationError("projectId is required").WithField("projectId")
	}

	p, err := s.registry.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	repo := git.NewClient(p.Path)
	logger := s.logger.WithProject(p.ID)

	return &scope{
		project:  p,
		repo:     repo,
		detector: branchmodel.NewDetector(repo, s.cfg.Branch, logger),
		migrator: branchmodel.NewMigrator(repo, s.cfg.Branch, logger),
		branches: branchmodel.NewManager(repo, s.cfg.Branch, logger),
		merges:   merge.NewOrchestrator(repo, s.cfg.Branch, logger),
		releases: release.NewOrchestrator(repo, s.fs, s.tasks, s.cfg, logger),
	}, nil
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return errors.NewValidationError("missing payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.NewValidationError("malformed payload").WithCause(err)
	}
	return nil
}
