package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	"github.com/senpy/sen-dashboard/internal/domain/guard"
	"github.com/senpy/sen-dashboard/internal/observability/metrics"
	"github.com/senpy/sen-dashboard/internal/observability/statsd"
	"github.com/senpy/sen-dashboard/internal/ports"
)

// RouteGuardOptions groups dependencies for RouteGuard.
type RouteGuardOptions struct {
	Sessions ports.SessionStore
	Policy   guard.Policy
	Config   RouteGuardConfig
}

// RouteGuardConfig holds optional collaborators for RouteGuard.
type RouteGuardConfig struct {
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// RouteGuard decides navigations from the current session state.
type RouteGuard struct {
	sessions ports.SessionStore
	policy   guard.Policy
	metrics  statsd.Sink
	logger   *slog.Logger
}

// NewRouteGuard constructs a RouteGuard.
func NewRouteGuard(opts RouteGuardOptions) *RouteGuard {
	if opts.Sessions == nil {
		panic("SessionStore is required")
	}
	logger := opts.Config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteGuard{
		sessions: opts.Sessions,
		policy:   opts.Policy,
		metrics:  opts.Config.Metrics,
		logger:   logger.With("component", "guard"),
	}
}

// GuardResult is the outcome of evaluating a request path.
type GuardResult struct {
	guard.Decision
	State   guard.State
	Session domainauth.Session
}

// Evaluate reads the session afresh and decides path. It never fails: a store
// error is logged and treated as an unauthenticated visitor.
func (g *RouteGuard) Evaluate(ctx context.Context, sessionID, path string) GuardResult {
	var sess domainauth.Session
	if sessionID != "" {
		s, err := g.sessions.Read(ctx, sessionID)
		if err != nil {
			g.logger.WarnContext(ctx, "session read failed; treating as unauthenticated", "error", err)
		} else {
			sess = s
		}
	}
	state := guard.StateOf(sess)
	res := GuardResult{Decision: g.policy.Decide(state, path), State: state, Session: sess}
	if !res.Allow {
		metrics.EmitGuardRedirect(g.metrics, state.String(), res.Redirect)
	}
	return res
}

// Classify exposes the policy's route kind for path.
func (g *RouteGuard) Classify(path string) guard.RouteKind { return g.policy.Classify(path) }

// Track starts following sessionID. The tracker's state is seeded from the
// store and then updated from change events until ctx is done.
func (g *RouteGuard) Track(ctx context.Context, sessionID string) (*GuardTracker, error) {
	// Subscribe before reading so a write landing in between is not lost.
	events, err := g.sessions.Subscribe(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("subscribe session: %w", err)
	}
	sess, err := g.sessions.Read(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	t := &GuardTracker{
		state:   guard.StateOf(sess),
		changes: make(chan guard.State, trackerBuffer),
	}
	go t.follow(events)
	return t, nil
}

const trackerBuffer = 8

// GuardTracker mirrors the guard state of one session as it changes.
type GuardTracker struct {
	mu      sync.RWMutex
	state   guard.State
	changes chan guard.State
}

// State returns the latest known state.
func (t *GuardTracker) State() guard.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// CanAccess reports whether a route of kind is reachable in the latest state.
func (t *GuardTracker) CanAccess(kind guard.RouteKind) bool {
	return guard.CanAccess(t.State(), kind)
}

// Changes delivers each state transition. It is closed when tracking stops,
// including when the session is replaced by a new ID after login.
// Transitions are dropped when the reader falls behind; State stays exact.
func (t *GuardTracker) Changes() <-chan guard.State { return t.changes }

func (t *GuardTracker) follow(events <-chan domainauth.SessionEvent) {
	defer close(t.changes)
	for ev := range events {
		if ev.Kind == domainauth.EventReplaced {
			return
		}
		next := guard.Unauthenticated
		if ev.Kind == domainauth.EventWritten {
			next = guard.Authenticated
		}

		t.mu.Lock()
		changed := t.state != next
		t.state = next
		t.mu.Unlock()

		if !changed {
			continue
		}
		select {
		case t.changes <- next:
		default:
		}
	}
}
