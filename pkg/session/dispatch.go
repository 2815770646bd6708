package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/TobiWan1995/statemcp/internal/logging"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/observability"
)

const defaultEffectTimeout = 5 * time.Second

// DirectDispatcher runs transition effects synchronously, in declaration
// order, each under its own timeout. Effect failures are logged and counted
// but never surface to the caller: a committed transition stays committed.
type DirectDispatcher struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	timeout time.Duration
}

// DispatcherOption configures a DirectDispatcher.
type DispatcherOption func(*DirectDispatcher)

// WithDispatchLogger sets the dispatcher's logger.
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(d *DirectDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDispatchMetrics wires the effect-failure counter.
func WithDispatchMetrics(m *observability.Metrics) DispatcherOption {
	return func(d *DirectDispatcher) { d.metrics = m }
}

// WithEffectTimeout bounds the execution of each individual effect.
func WithEffectTimeout(timeout time.Duration) DispatcherOption {
	return func(d *DirectDispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDirectDispatcher creates a dispatcher with a 5s per-effect timeout.
func NewDirectDispatcher(opts ...DispatcherOption) *DirectDispatcher {
	d := &DirectDispatcher{
		logger:  logging.NewNop(),
		timeout: defaultEffectTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs every effect of a committed transition. Nil effect functions
// are skipped.
func (d *DirectDispatcher) Dispatch(ctx context.Context, effects []domain.Effect, vars *domain.Vars, res domain.TransitionResult) {
	for _, eff := range effects {
		if eff.Run == nil {
			continue
		}
		d.run(ctx, eff, vars, res)
	}
}

func (d *DirectDispatcher) run(ctx context.Context, eff domain.Effect, vars *domain.Vars, res domain.TransitionResult) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("transition effect panicked",
				"effect", eff.Name, "session_id", res.SessionID,
				"from", res.From, "to", res.To, "panic", r)
			d.metrics.RecordEffectFailure()
		}
	}()
	if err := eff.Run(ctx, vars, res); err != nil {
		d.logger.Warn("transition effect failed",
			"effect", eff.Name, "session_id", res.SessionID,
			"from", res.From, "to", res.To, "err", err)
		d.metrics.RecordEffectFailure()
	}
}
