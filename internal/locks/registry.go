// Package locks provides per-repository write serialization.
//
// All git-mutating operations (migrate, merge, promote, branch creation) on
// one working copy must run one at a time: interleaved checkouts and merges
// would corrupt each other's view of the worktree. The Registry maintains
// one lock per project id; the command server acquires it around every
// mutating handler. Reads (detect, status, preview) never take the lock.
//
// # Basic Usage
//
//	reg := locks.NewRegistry()
//
//	release := reg.Acquire("project-1", "workspace.merge")
//	defer release()
//
//	// Check who holds a repository
//	holder, ok := reg.Holder("project-1")
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use.
package locks

import (
	"sort"
	"sync"
	"time"
)

// holderInfo records who currently holds a repository lock, for logging and
// diagnostics.
type holderInfo struct {
	name  string
	since time.Time
}

// Registry manages one write lock per repository.
type Registry struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	holders map[string]holderInfo
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{
		locks:   make(map[string]*sync.Mutex),
		holders: make(map[string]holderInfo),
	}
}

// Acquire blocks until the write lock for projectID is free, records the
// holder name, and returns the release function. The lock is not reentrant:
// a holder acquiring the same project again deadlocks, so one command must
// acquire at most once.
func (r *Registry) Acquire(projectID, holder string) func() {
	mu := r.lockFor(projectID)
	mu.Lock()

	r.mu.Lock()
	r.holders[projectID] = holderInfo{name: holder, since: time.Now()}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.holders, projectID)
			r.mu.Unlock()
			mu.Unlock()
		})
	}
}

// TryAcquire acquires the lock only if it is immediately available.
// Returns the release function and true on success.
func (r *Registry) TryAcquire(projectID, holder string) (func(), bool) {
	mu := r.lockFor(projectID)
	if !mu.TryLock() {
		return nil, false
	}

	r.mu.Lock()
	r.holders[projectID] = holderInfo{name: holder, since: time.Now()}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.holders, projectID)
			r.mu.Unlock()
			mu.Unlock()
		})
	}, true
}

// Holder returns the name recorded by the current lock holder and true, or
// ("", false) when the repository is unlocked.
func (r *Registry) Holder(projectID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.holders[projectID]
	if !ok {
		return "", false
	}
	return info.name, true
}

// HeldSince returns how long the current holder has held the lock, or zero
// when the repository is unlocked.
func (r *Registry) HeldSince(projectID string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.holders[projectID]
	if !ok {
		return 0
	}
	return time.Since(info.since)
}

// Active returns the project ids currently locked, sorted for deterministic
// output.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.holders))
	for id := range r.holders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// lockFor returns the mutex for a project, creating it on first use.
// Mutexes are never removed: the set of projects is small and stable.
func (r *Registry) lockFor(projectID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	mu, ok := r.locks[projectID]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[projectID] = mu
	}
	return mu
}
