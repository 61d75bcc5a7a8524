package session

import (
	"sync"
	"time"
)

// DefaultMaxConsoleLines bounds a session's retained console output.
const DefaultMaxConsoleLines = 1000

// Registry owns the set of active sessions and the TerminatedCache they
// drain into on termination.
type Registry struct {
	mu              sync.Mutex
	sessions        map[string]*Session
	maxConsoleLines int
	terminated      *TerminatedCache
	now             func() time.Time
}

// NewRegistry creates an empty Registry. maxConsoleLines <= 0 uses
// DefaultMaxConsoleLines; terminatedTTL <= 0 uses DefaultTerminatedTTL.
func NewRegistry(maxConsoleLines int, terminatedTTL time.Duration) *Registry {
	if maxConsoleLines <= 0 {
		maxConsoleLines = DefaultMaxConsoleLines
	}
	return &Registry{
		sessions:        make(map[string]*Session),
		maxConsoleLines: maxConsoleLines,
		terminated:      NewTerminatedCache(terminatedTTL),
		now:             time.Now,
	}
}

// Terminated returns the registry's TerminatedCache.
func (r *Registry) Terminated() *TerminatedCache {
	return r.terminated
}

// Create registers a new Running session with id.
func (r *Registry) Create(id string) *Session {
	s := &Session{
		ID:          id,
		State:       StateRunning,
		Metadata:    &Metadata{LastActivityAt: r.now()},
		Breakpoints: make(map[string]any),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
	return s
}

// Get returns the active session for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// SetState transitions an active session's state.
func (r *Registry) SetState(id string, state State) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	return true
}

// AppendConsoleOutput appends line, dropping the oldest line if the
// session's console output is already at maxConsoleLines.
func (r *Registry) AppendConsoleOutput(id, line string) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConsoleOutput = append(s.ConsoleOutput, line)
	if overflow := len(s.ConsoleOutput) - r.maxConsoleLines; overflow > 0 {
		s.ConsoleOutput = s.ConsoleOutput[overflow:]
	}
	return true
}

// SetBreakpoint records or replaces a breakpoint under key.
func (r *Registry) SetBreakpoint(id, key string, breakpoint any) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Breakpoints[key] = breakpoint
	return true
}

// RemoveBreakpoint deletes a breakpoint by key.
func (r *Registry) RemoveBreakpoint(id, key string) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Breakpoints, key)
	return true
}

// RecordActivity bumps metadata.lastActivityAt and activityCount. Per
// spec.md §4.13, this is a no-op when metadata is absent (it also no-ops,
// harmlessly, when the session itself doesn't exist).
func (r *Registry) RecordActivity(id string) {
	s, ok := r.Get(id)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Metadata == nil {
		return
	}
	s.Metadata.LastActivityAt = r.now()
	s.Metadata.ActivityCount++
}

// Terminate snapshots the session (cloning breakpoints and console output),
// marks it terminated, invokes and clears its cleanup handle, removes it
// from the active set, and stores the snapshot in the TerminatedCache.
func (r *Registry) Terminate(id string) (Snapshot, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}

	s.mu.Lock()
	s.State = StateTerminated
	cleanup := s.Cleanup
	s.Cleanup = nil
	snapshot := Snapshot{
		ID:            s.ID,
		State:         StateTerminated,
		ConsoleOutput: cloneStrings(s.ConsoleOutput),
		Breakpoints:   cloneBreakpoints(s.Breakpoints),
	}
	if s.Metadata != nil {
		snapshot.Metadata = *s.Metadata
	}
	s.mu.Unlock()

	if cleanup != nil {
		cleanup()
	}

	r.terminated.Store(snapshot)
	return snapshot, true
}
