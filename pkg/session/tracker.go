package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TobiWan1995/statemcp/internal/logging"
	"github.com/TobiWan1995/statemcp/pkg/automaton"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/observability"
	"github.com/TobiWan1995/statemcp/pkg/ports"
)

// distributedLockTTL bounds how long a crashed replica can hold a session.
const distributedLockTTL = 30 * time.Second

// Tracker drives sessions through an automaton. It owns the per-session
// position, serializes transitions per session, and persists state through
// a ports.SessionStore so restarts (or multiple replicas sharing a Redis
// store) see the same position.
type Tracker struct {
	machine    *automaton.Automaton
	store      ports.SessionStore
	dispatcher ports.EffectDispatcher
	locker     ports.SessionLocker
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu       sync.Mutex
	locks    map[string]*lockEntry
	vars     map[string]*domain.Vars
	lastSeen map[string]time.Time

	ttl         time.Duration
	janitorStop chan struct{}
	stopOnce    sync.Once
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithDispatcher sets the effect dispatcher used after committed transitions.
func WithDispatcher(d ports.EffectDispatcher) TrackerOption {
	return func(t *Tracker) {
		if d != nil {
			t.dispatcher = d
		}
	}
}

// WithMetrics wires transition and rejection counters.
func WithMetrics(m *observability.Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = m }
}

// WithSessionLocker serializes transitions across replicas sharing one
// session store.
func WithSessionLocker(locker ports.SessionLocker) TrackerOption {
	return func(t *Tracker) { t.locker = locker }
}

// WithTTL enables the idle-session janitor. Sessions that have not seen a
// transition for longer than ttl are evicted from the store.
func WithTTL(ttl time.Duration) TrackerOption {
	return func(t *Tracker) { t.ttl = ttl }
}

// NewTracker creates a Tracker over the given automaton and store.
func NewTracker(machine *automaton.Automaton, store ports.SessionStore, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		machine:    machine,
		store:      store,
		dispatcher: NewDirectDispatcher(),
		logger:     logging.NewNop(),
		locks:      make(map[string]*lockEntry),
		vars:       make(map[string]*domain.Vars),
		lastSeen:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.ttl > 0 {
		t.janitorStop = make(chan struct{})
		go t.janitor()
	}
	return t
}

// Stop terminates the idle-session janitor, if one is running.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		if t.janitorStop != nil {
			close(t.janitorStop)
		}
	})
}

// withLock runs fn while holding the per-session lock for id. Lock entries
// are reference counted so the map does not grow with dead sessions. When a
// distributed locker is configured, the cross-replica lock is taken inside
// the local one.
func (t *Tracker) withLock(ctx context.Context, id string, fn func() error) error {
	t.mu.Lock()
	entry, ok := t.locks[id]
	if !ok {
		entry = &lockEntry{}
		t.locks[id] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()
	err := t.withDistributedLock(ctx, id, fn)
	entry.mu.Unlock()

	t.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(t.locks, id)
	}
	t.mu.Unlock()

	return err
}

func (t *Tracker) withDistributedLock(ctx context.Context, id string, fn func() error) error {
	if t.locker == nil {
		return fn()
	}
	unlock, err := t.locker.Lock(ctx, id, distributedLockTTL)
	if err != nil {
		return fmt.Errorf("failed to lock session %q: %w", id, err)
	}
	defer func() {
		if uerr := unlock(ctx); uerr != nil {
			t.logger.Warn("failed to release session lock", "session_id", id, "err", uerr)
		}
	}()
	return fn()
}

// loadOrInit returns the persisted state for id, creating a fresh session at
// the automaton's initial state on first contact. Caller must hold the
// session lock.
func (t *Tracker) loadOrInit(ctx context.Context, id string) (*domain.SessionState, error) {
	state, err := t.store.Load(ctx, id)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, err
	}
	state = domain.NewSessionState(t.machine.Initial())
	if err := t.store.Save(ctx, id, state); err != nil {
		return nil, fmt.Errorf("failed to initialize session %q: %w", id, err)
	}
	t.metrics.SessionStarted()
	t.markSeen(id)
	t.logger.Debug("session initialized", "session_id", id, "state", state.Current)
	return state, nil
}

// StartSession ensures a session exists, returning its current state. The
// call is idempotent: an existing session is returned untouched.
func (t *Tracker) StartSession(ctx context.Context, id string) (*domain.SessionState, error) {
	var state *domain.SessionState
	err := t.withLock(ctx, id, func() error {
		var innerErr error
		state, innerErr = t.loadOrInit(ctx, id)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// EndSession removes a session and its variables. Ending an unknown session
// is a no-op and leaves the active-session gauge untouched.
func (t *Tracker) EndSession(ctx context.Context, id string) error {
	return t.withLock(ctx, id, func() error {
		if _, err := t.store.Load(ctx, id); err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil
			}
			return err
		}
		if err := t.store.Delete(ctx, id); err != nil {
			return err
		}
		t.mu.Lock()
		delete(t.vars, id)
		delete(t.lastSeen, id)
		t.mu.Unlock()
		t.metrics.SessionEnded()
		t.logger.Debug("session ended", "session_id", id)
		return nil
	})
}

// Current returns the state identifier the session currently occupies,
// initializing the session if it does not exist yet.
func (t *Tracker) Current(ctx context.Context, id string) (string, error) {
	state, err := t.StartSession(ctx, id)
	if err != nil {
		return "", err
	}
	return state.Current, nil
}

// State returns a copy of the full session state.
func (t *Tracker) State(ctx context.Context, id string) (*domain.SessionState, error) {
	return t.StartSession(ctx, id)
}

// Vars returns the scratch variable bag for a session, creating it on first
// use. Variables live in process memory only and are not persisted.
func (t *Tracker) Vars(id string) *domain.Vars {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.vars[id]
	if !ok {
		v = domain.NewVars()
		t.vars[id] = v
	}
	return v
}

// Sessions lists the identifiers of all live sessions.
func (t *Tracker) Sessions(ctx context.Context) ([]string, error) {
	return t.store.List(ctx)
}

// Callable reports whether invoking ref is permitted for the session in its
// current state. Concluded sessions permit nothing.
func (t *Tracker) Callable(ctx context.Context, id string, ref domain.ArtifactRef) (bool, error) {
	var callable bool
	err := t.withLock(ctx, id, func() error {
		state, innerErr := t.loadOrInit(ctx, id)
		if innerErr != nil {
			return innerErr
		}
		callable = !state.Concluded && t.machine.Callable(state.Current, ref)
		return nil
	})
	if err != nil {
		return false, err
	}
	return callable, nil
}

// Transition applies the outcome of an artifact invocation to a session.
// The move is resolved against the automaton, committed to the store, and
// only then are the edge's effects dispatched. Effects run outside the
// session lock so they may call back into the tracker.
func (t *Tracker) Transition(ctx context.Context, id string, ref domain.ArtifactRef, outcome domain.Outcome) (domain.TransitionResult, error) {
	var (
		res     domain.TransitionResult
		effects []domain.Effect
	)
	err := t.withLock(ctx, id, func() error {
		state, innerErr := t.loadOrInit(ctx, id)
		if innerErr != nil {
			return innerErr
		}
		if state.Concluded {
			t.metrics.RecordRejection(observability.ReasonConcluded)
			return fmt.Errorf("session %q: %w", id, domain.ErrSessionConcluded)
		}
		edge, ok := t.machine.EdgeFor(state.Current, ref, outcome)
		if !ok {
			// Build materializes error self-loops, so a missing error edge
			// means the automaton was bypassed. Hold position anyway.
			if outcome == domain.OutcomeError {
				t.logger.Warn("unbound error outcome, holding state",
					"session_id", id, "state", state.Current, "artifact", ref.String())
				edge = automaton.Edge{
					From:     state.Current,
					Artifact: ref,
					Outcome:  outcome,
					To:       state.Current,
					Implicit: true,
				}
			} else {
				t.metrics.RecordRejection(observability.ReasonUnbound)
				return fmt.Errorf("state %q, artifact %s: %w", state.Current, ref, domain.ErrUnboundOutcome)
			}
		}
		from := state.Current
		state.Current = edge.To
		state.Concluded = edge.Terminal
		if innerErr := t.store.Save(ctx, id, state); innerErr != nil {
			return fmt.Errorf("failed to commit transition for session %q: %w", id, innerErr)
		}
		t.markSeen(id)
		res = domain.TransitionResult{
			SessionID: id,
			From:      from,
			To:        edge.To,
			Artifact:  ref,
			Outcome:   outcome,
			Terminal:  edge.Terminal,
		}
		effects = edge.Effects
		return nil
	})
	if err != nil {
		return domain.TransitionResult{}, err
	}

	t.metrics.RecordTransition(res)
	t.logger.Debug("transition committed",
		"session_id", id, "from", res.From, "to", res.To,
		"artifact", ref.String(), "outcome", string(outcome), "terminal", res.Terminal)

	if len(effects) > 0 {
		t.dispatcher.Dispatch(ctx, effects, t.Vars(id), res)
	}
	return res, nil
}

func (t *Tracker) markSeen(id string) {
	t.mu.Lock()
	t.lastSeen[id] = time.Now()
	t.mu.Unlock()
}

func (t *Tracker) janitor() {
	interval := t.ttl / 4
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.janitorStop:
			return
		case <-ticker.C:
			t.evictIdle()
		}
	}
}

func (t *Tracker) evictIdle() {
	cutoff := time.Now().Add(-t.ttl)
	t.mu.Lock()
	var stale []string
	for id, seen := range t.lastSeen {
		if seen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, id := range stale {
		if err := t.EndSession(ctx, id); err != nil {
			t.logger.Warn("failed to evict idle session", "session_id", id, "err", err)
			continue
		}
		t.logger.Info("evicted idle session", "session_id", id)
	}
}
