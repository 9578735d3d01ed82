package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/senpy/sen-dashboard/internal/observability/statsd"
	"github.com/senpy/sen-dashboard/internal/testutil"
)

type fakeIdleStore struct {
	mu      sync.Mutex
	expired []string
	err     error
	calls   int
	idle    time.Duration
	now     time.Time
}

func (f *fakeIdleStore) ExpireIdle(_ context.Context, idle time.Duration, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.idle, f.now = idle, now
	return f.expired, f.err
}

func (f *fakeIdleStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingCleaner struct {
	mu      sync.Mutex
	dropped []string
}

func (c *recordingCleaner) DropSession(_ context.Context, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped = append(c.dropped, sessionID)
}

func TestNewSessionReaper_Validation(t *testing.T) {
	_, err := NewSessionReaper(SessionReaperOptions{IdleTTL: time.Hour})
	require.Error(t, err)

	_, err = NewSessionReaper(SessionReaperOptions{Store: &fakeIdleStore{}})
	require.Error(t, err)

	r, err := NewSessionReaper(SessionReaperOptions{Store: &fakeIdleStore{}, IdleTTL: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, r.interval)

	r, err = NewSessionReaper(SessionReaperOptions{Store: &fakeIdleStore{}, IdleTTL: 8 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, r.interval)
}

func TestSessionReaper_SweepDropsExpiredSessions(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeIdleStore{expired: []string{"a", "b"}}
	cleaner := &recordingCleaner{}
	rec := statsd.NewRecorder()

	r, err := NewSessionReaper(SessionReaperOptions{
		Store:    store,
		IdleTTL:  30 * time.Minute,
		Cleaners: []SessionCleaner{cleaner},
		Metrics:  rec,
		Now:      testutil.FixedTimeFunc(now),
	})
	require.NoError(t, err)

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, cleaner.dropped)
	assert.Equal(t, 30*time.Minute, store.idle)
	assert.Equal(t, now, store.now)
	assert.Equal(t, int64(2), rec.CountOf("session_reaper.sessions_expired"))
}

func TestSessionReaper_SweepDropsReportsOfExpiredSessions(t *testing.T) {
	reports := NewReportService(ReportServiceOptions{})
	_, err := reports.Create(context.Background(), "gone", testutil.NewReportRequest().Build())
	require.NoError(t, err)
	require.Len(t, reports.Recent(context.Background(), "gone"), 1)

	r, err := NewSessionReaper(SessionReaperOptions{
		Store:    &fakeIdleStore{expired: []string{"gone"}},
		IdleTTL:  time.Minute,
		Cleaners: []SessionCleaner{reports},
	})
	require.NoError(t, err)

	_, err = r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports.Recent(context.Background(), "gone"))
}

type fakePresence struct {
	live map[string]bool
	err  error
}

func (f fakePresence) Existing(_ context.Context, sessionIDs []string) (map[string]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		out[id] = f.live[id]
	}
	return out, nil
}

func TestSessionReaper_OrphanedReportsDropsExpiredSessionsOnly(t *testing.T) {
	ctx := context.Background()
	reports := NewReportService(ReportServiceOptions{})
	for _, sid := range []string{"live", "expired"} {
		_, err := reports.Create(ctx, sid, testutil.NewReportRequest().Build())
		require.NoError(t, err)
	}

	r, err := NewSessionReaper(SessionReaperOptions{
		Store:    OrphanedReports{Reports: reports, Sessions: fakePresence{live: map[string]bool{"live": true}}},
		IdleTTL:  time.Minute,
		Cleaners: []SessionCleaner{reports},
	})
	require.NoError(t, err)

	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, reports.Recent(ctx, "expired"))
	assert.Len(t, reports.Recent(ctx, "live"), 1)
	assert.Len(t, reports.All(ctx), 1)
	assert.Equal(t, []string{"live"}, reports.SessionIDs())
}

func TestOrphanedReports_ExpireIdle(t *testing.T) {
	ctx := context.Background()
	reports := NewReportService(ReportServiceOptions{})

	gone, err := OrphanedReports{Reports: reports, Sessions: fakePresence{err: errors.New("down")}}.
		ExpireIdle(ctx, time.Minute, time.Now())
	require.NoError(t, err, "no reports means no lookup")
	assert.Empty(t, gone)

	_, err = reports.Create(ctx, "sid", testutil.NewReportRequest().Build())
	require.NoError(t, err)
	_, err = OrphanedReports{Reports: reports, Sessions: fakePresence{err: errors.New("down")}}.
		ExpireIdle(ctx, time.Minute, time.Now())
	require.Error(t, err)
	assert.Len(t, reports.Recent(ctx, "sid"), 1)
}

func TestSessionReaper_SweepError(t *testing.T) {
	rec := statsd.NewRecorder()
	r, err := NewSessionReaper(SessionReaperOptions{
		Store:   &fakeIdleStore{err: errors.New("boom")},
		IdleTTL: time.Minute,
		Metrics: rec,
	})
	require.NoError(t, err)

	_, err = r.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expire idle sessions")
	assert.Zero(t, rec.CountOf("session_reaper.sessions_expired"))
}

func TestSessionReaper_RunStopsOnCancel(t *testing.T) {
	store := &fakeIdleStore{}
	r, err := NewSessionReaper(SessionReaperOptions{
		Store:    store,
		IdleTTL:  time.Minute,
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool { return store.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

func TestSessionReaper_RunReturnsDeadline(t *testing.T) {
	r, err := NewSessionReaper(SessionReaperOptions{Store: &fakeIdleStore{}, IdleTTL: time.Minute, Interval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Run(ctx), context.DeadlineExceeded)
}
