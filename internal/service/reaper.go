package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/senpy/sen-dashboard/internal/observability/metrics"
	"github.com/senpy/sen-dashboard/internal/observability/statsd"
)

// IdleSessionStore is a session store that cannot expire entries on its own.
type IdleSessionStore interface {
	ExpireIdle(ctx context.Context, idle time.Duration, now time.Time) ([]string, error)
}

// SessionPresence reports which sessions still exist in a store that expires
// them on its own, such as Redis key TTLs.
type SessionPresence interface {
	Existing(ctx context.Context, sessionIDs []string) (map[string]bool, error)
}

// OrphanedReports lets the reaper find report logs whose session the store
// has already expired. The idle window is the store's business, so ExpireIdle
// ignores it and only compares against what still exists.
type OrphanedReports struct {
	Reports  *ReportService
	Sessions SessionPresence
}

// ExpireIdle returns the sessions that hold reports but no longer exist.
// Dropping their reports is left to the reaper's cleaners.
func (o OrphanedReports) ExpireIdle(ctx context.Context, _ time.Duration, _ time.Time) ([]string, error) {
	ids := o.Reports.SessionIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	existing, err := o.Sessions.Existing(ctx, ids)
	if err != nil {
		return nil, err
	}
	var gone []string
	for _, id := range ids {
		if !existing[id] {
			gone = append(gone, id)
		}
	}
	return gone, nil
}

// SessionReaperOptions groups dependencies for SessionReaper.
type SessionReaperOptions struct {
	Store    IdleSessionStore // Required: store to sweep
	IdleTTL  time.Duration    // Required: sessions untouched this long are removed
	Interval time.Duration    // Optional: sweep period, defaults to IdleTTL/4 capped at 5m
	Cleaners []SessionCleaner // Optional: told about every expired session
	Logger   *slog.Logger     // Optional: structured logger
	Metrics  statsd.Sink      // Optional: metrics sink (StatsD-compatible)
	Now      func() time.Time // Optional: clock, defaults to time.Now
}

// SessionReaper periodically removes idle sessions from an in-process store,
// giving it the same idle expiry Redis provides through key TTLs.
type SessionReaper struct {
	store    IdleSessionStore
	idleTTL  time.Duration
	interval time.Duration
	cleaners []SessionCleaner
	logger   *slog.Logger
	metrics  statsd.Sink
	now      func() time.Time
}

// NewSessionReaper constructs a SessionReaper.
func NewSessionReaper(opts SessionReaperOptions) (*SessionReaper, error) {
	if opts.Store == nil {
		return nil, errors.New("IdleSessionStore is required")
	}
	if opts.IdleTTL <= 0 {
		return nil, errors.New("idle TTL must be positive")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = min(opts.IdleTTL/4, 5*time.Minute)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionReaper{
		store:    opts.Store,
		idleTTL:  opts.IdleTTL,
		interval: interval,
		cleaners: opts.Cleaners,
		logger:   logger.With("component", "session_reaper"),
		metrics:  opts.Metrics,
		now:      now,
	}, nil
}

// Run sweeps at the configured interval until ctx is cancelled. It returns
// nil on graceful shutdown.
func (s *SessionReaper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting session reaper", "interval", s.interval, "idle_ttl", s.idleTTL)

	// Jitter keeps several replicas from sweeping in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "session reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logCleanupError(err)
			}
		}
	}
}

// Sweep expires idle sessions once and returns how many were removed.
func (s *SessionReaper) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	expired, err := s.store.ExpireIdle(ctx, s.idleTTL, s.now())
	for _, id := range expired {
		for _, c := range s.cleaners {
			c.DropSession(ctx, id)
		}
	}

	metrics.EmitSessionReap(s.metrics, metrics.SessionReapMetric{
		Expired: len(expired),
		Elapsed: time.Since(start),
		Err:     suppressContextCancellation(err),
	})
	if err != nil {
		return len(expired), fmt.Errorf("expire idle sessions: %w", err)
	}
	if len(expired) > 0 {
		s.logger.InfoContext(ctx, "expired idle sessions", "count", len(expired), "idle_ttl", s.idleTTL)
	}
	return len(expired), nil
}

// waitWithJitter delays up to 10% of the interval.
func (s *SessionReaper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *SessionReaper) logCleanupError(err error) {
	if isContextCancellation(err) {
		s.logger.Debug("session sweep cancelled by context", "error", err)
		return
	}
	s.logger.Error("session sweep failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
