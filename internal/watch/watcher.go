// Package watch monitors the git ref state of registered repositories and
// publishes refs.changed events when branches are created, moved, or deleted
// outside Meridian, so clients can refresh cached branch model state.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/meridian-labs/meridian/internal/event"
	"github.com/meridian-labs/meridian/internal/logging"
)

// debounceInterval coalesces the bursts of events git emits during a single
// operation (lock file, ref update, packed-refs rewrite) into one notification.
const debounceInterval = 100 * time.Millisecond

// RefsWatcher watches the .git directories of registered projects and
// publishes a RefsChangedEvent when a project's branch refs change.
type RefsWatcher struct {
	watcher *fsnotify.Watcher
	bus     *event.Bus
	logger  *logging.Logger

	// Map of .git directory path -> project ID, used to attribute
	// filesystem events back to a project.
	gitDirs map[string]string

	mu       sync.RWMutex
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a RefsWatcher publishing on the given bus. Call Start to begin
// delivering events and Stop to release the underlying watcher.
func New(bus *event.Bus, logger *logging.Logger) (*RefsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &RefsWatcher{
		watcher: watcher,
		bus:     bus,
		logger:  logger,
		gitDirs: make(map[string]string),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// AddProject starts watching the repository at repoDir for ref changes.
// Watching a project twice is a no-op.
func (w *RefsWatcher) AddProject(projectID, repoDir string) error {
	gitDir := filepath.Join(repoDir, ".git")

	w.mu.Lock()
	defer w.mu.Unlock()

	for dir, id := range w.gitDirs {
		if dir == gitDir && id == projectID {
			return nil
		}
	}

	// Watch the .git directory itself for HEAD and packed-refs rewrites,
	// plus refs/ recursively for loose ref updates. Hierarchical branch
	// names create nested directories under refs/heads, so new
	// subdirectories are picked up in the event loop as they appear.
	if err := w.watcher.Add(gitDir); err != nil {
		return err
	}
	if err := w.watchRefsRecursive(filepath.Join(gitDir, "refs")); err != nil {
		return err
	}

	w.gitDirs[gitDir] = projectID
	w.logger.Debug("watching repository refs", "project_id", projectID, "git_dir", gitDir)
	return nil
}

// watchRefsRecursive adds refs/ and all of its subdirectories to the watcher.
func (w *RefsWatcher) watchRefsRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries, keep walking
		}
		if info.IsDir() {
			_ = w.watcher.Add(path)
		}
		return nil
	})
}

// RemoveProject stops watching a project's repository.
func (w *RefsWatcher) RemoveProject(projectID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for gitDir, id := range w.gitDirs {
		if id != projectID {
			continue
		}
		_ = w.watcher.Remove(gitDir)
		_ = filepath.Walk(filepath.Join(gitDir, "refs"), func(path string, info os.FileInfo, err error) error {
			if err == nil && info.IsDir() {
				_ = w.watcher.Remove(path)
			}
			return nil
		})
		delete(w.gitDirs, gitDir)
	}
}

// Start begins watching for ref changes.
func (w *RefsWatcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	go w.watchLoop()
}

// Stop stops the watcher and releases its resources. It blocks until the
// event loop has exited, so no events are published after Stop returns.
// Safe to call more than once.
func (w *RefsWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})

	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if started {
		<-w.doneCh
	}
}

// watchLoop processes filesystem events. Git writes refs through lock files
// and rewrites packed-refs wholesale, so a single branch operation produces
// several events; these are debounced per project before publishing.
func (w *RefsWatcher) watchLoop() {
	defer close(w.doneCh)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pendingProjects := make(map[string]struct{})

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			projectID, isRef := w.classifyEvent(ev)
			if !isRef {
				continue
			}

			pendingProjects[projectID] = struct{}{}
			debounceTimer.Reset(debounceInterval)

		case <-debounceTimer.C:
			for projectID := range pendingProjects {
				w.logger.Debug("refs changed", "project_id", projectID)
				w.bus.Publish(event.NewRefsChangedEvent(projectID))
			}
			pendingProjects = make(map[string]struct{})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("refs watcher error", "error", err)
		}
	}
}

// classifyEvent maps a filesystem event to the project it belongs to and
// reports whether it represents a ref change worth publishing.
func (w *RefsWatcher) classifyEvent(ev fsnotify.Event) (projectID string, isRef bool) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return "", false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	var gitDir string
	for dir, id := range w.gitDirs {
		if strings.HasPrefix(ev.Name, dir+string(filepath.Separator)) {
			gitDir = dir
			projectID = id
			break
		}
	}
	if gitDir == "" {
		return "", false
	}

	rel, err := filepath.Rel(gitDir, ev.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	// Git stages ref updates through *.lock files; the rename to the final
	// name arrives as a Create on the ref itself.
	if strings.HasSuffix(rel, ".lock") {
		return "", false
	}

	if strings.HasPrefix(rel, "refs/") {
		// A created directory under refs/ means a new branch namespace
		// (e.g. the first feature/* branch); watch it for future refs.
		if ev.Op&fsnotify.Create != 0 {
			if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
				_ = w.watcher.Add(ev.Name)
			}
		}
		return projectID, true
	}

	switch rel {
	case "HEAD", "packed-refs":
		return projectID, true
	}
	return "", false
}
