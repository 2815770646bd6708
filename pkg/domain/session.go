package domain

import "sync"

// SessionState is the persisted automaton position of one session.
type SessionState struct {
	// Current is the identifier of the session's current state.
	Current string `json:"current"`

	// Concluded reports that a terminal transition fired. The session keeps
	// its final state for inspection but rejects further invocations.
	Concluded bool `json:"concluded"`
}

// NewSessionState creates a session positioned at the given state.
func NewSessionState(initial string) *SessionState {
	return &SessionState{Current: initial}
}

// Clone returns an independent copy.
func (s *SessionState) Clone() *SessionState {
	cp := *s
	return &cp
}

// Vars is a thread-safe key-value store scoped to one session. It carries the
// domain data effects operate on; values are user-defined.
type Vars struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewVars creates an empty store.
func NewVars() *Vars {
	return &Vars{m: make(map[string]any)}
}

// Set stores a value under key.
func (v *Vars) Set(key string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m[key] = value
}

// Get returns the value for key and whether it is present.
func (v *Vars) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.m[key]
	return val, ok
}

// Pop removes and returns the value for key and whether it was present.
func (v *Vars) Pop(key string) (any, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	val, ok := v.m[key]
	delete(v.m, key)
	return val, ok
}

// Keys returns all stored keys.
func (v *Vars) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns a shallow read-only copy of the stored values.
func (v *Vars) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]any, len(v.m))
	for k, val := range v.m {
		out[k] = val
	}
	return out
}

// Clear removes all values.
func (v *Vars) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m = make(map[string]any)
}
