package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	"github.com/senpy/sen-dashboard/internal/testutil"
)

func TestSessionStore_RoundTrip(t *testing.T) {
	store := NewSessionStore(nil)
	ctx := context.Background()

	for _, res := range []domainauth.AuthResult{
		testutil.NewAuthResult().AsAdmin().Build(),
		testutil.NewAuthResult().WithTokens("a", "").Build(),
		testutil.NewAuthResult().WithUser(domainauth.User{ID: 9, Name: "Ñandutí", Email: "n@py", Role: 0}).Build(),
	} {
		require.NoError(t, store.Write(ctx, "sid", res))
		got, err := store.Read(ctx, "sid")
		require.NoError(t, err)
		assert.Equal(t, domainauth.SessionFrom(res), got)
	}
}

func TestSessionStore_ReadUnknown(t *testing.T) {
	got, err := NewSessionStore(nil).Read(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, domainauth.Session{}, got)
}

func TestSessionStore_WriteRejectsIncompleteInput(t *testing.T) {
	store := NewSessionStore(nil)
	assert.Error(t, store.Write(context.Background(), "", testutil.NewAuthResult().Build()))
	assert.Error(t, store.Write(context.Background(), "sid", domainauth.AuthResult{}))
	assert.Zero(t, store.Len())
}

func TestSessionStore_ClearTwice(t *testing.T) {
	store := NewSessionStore(nil)
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "sid", testutil.NewAuthResult().Build()))

	for i := 0; i < 2; i++ {
		require.NoError(t, store.Clear(ctx, "sid"))
		got, err := store.Read(ctx, "sid")
		require.NoError(t, err)
		assert.False(t, got.Authenticated())
		assert.Nil(t, got.User)
		assert.Empty(t, got.Token)
	}
	assert.NoError(t, store.Clear(ctx, ""))
}

func TestSessionStore_MalformedData(t *testing.T) {
	tests := []struct {
		name string
		raw  Slots
	}{
		{"unparsable profile", Slots{AccessToken: "tok", User: "{oops"}},
		{"token without user", Slots{AccessToken: "tok"}},
		{"user without token", Slots{User: `{"id":1}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewSessionStore(nil)
			store.PutRaw("sid", tt.raw)

			got, err := store.Read(context.Background(), "sid")
			require.NoError(t, err)
			assert.Equal(t, domainauth.Session{}, got)
			assert.Zero(t, store.Len(), "malformed data should be discarded")
		})
	}
}

func TestSessionStore_Subscribe(t *testing.T) {
	store := NewSessionStore(nil)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := store.Subscribe(ctx, "sid")
	require.NoError(t, err)
	other, err := store.Subscribe(ctx, "other")
	require.NoError(t, err)

	require.NoError(t, store.Write(context.Background(), "sid", testutil.NewAuthResult().Build()))
	require.NoError(t, store.Clear(context.Background(), "sid"))

	assert.Equal(t, domainauth.SessionEvent{SessionID: "sid", Kind: domainauth.EventWritten}, <-events)
	assert.Equal(t, domainauth.SessionEvent{SessionID: "sid", Kind: domainauth.EventCleared}, <-events)
	assert.Empty(t, other, "events are scoped to a session")

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-events
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, err = store.Subscribe(context.Background(), "")
	assert.Error(t, err)
}

func TestSessionStore_SlowSubscriberDoesNotBlockWriters(t *testing.T) {
	store := NewSessionStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := store.Subscribe(ctx, "sid")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*4; i++ {
			_ = store.Clear(context.Background(), "sid")
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer blocked on a slow subscriber")
	}
}

func TestSessionStore_ConcurrentAccess(t *testing.T) {
	store := NewSessionStore(nil)
	ctx := context.Background()
	res := testutil.NewAuthResult().Build()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = store.Write(ctx, "sid", res)
				got, err := store.Read(ctx, "sid")
				assert.NoError(t, err)
				assert.Equal(t, got.Token != "", got.User != nil, "token and user must travel together")
				_ = store.Clear(ctx, "sid")
			}
		}()
	}
	wg.Wait()
}

func TestSessionStore_ExpireIdle(t *testing.T) {
	store := NewSessionStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "old", testutil.NewAuthResult().Build()))
	require.NoError(t, store.Write(ctx, "fresh", testutil.NewAuthResult().Build()))
	events, err := store.Subscribe(ctx, "old")
	require.NoError(t, err)

	// Nothing is idle for an hour yet.
	expired, err := store.ExpireIdle(ctx, time.Hour, time.Now())
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = store.ExpireIdle(ctx, time.Hour, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old", "fresh"}, expired)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, domainauth.SessionEvent{SessionID: "old", Kind: domainauth.EventCleared}, <-events)

	got, err := store.Read(ctx, "old")
	require.NoError(t, err)
	assert.False(t, got.Authenticated())

	_, err = store.ExpireIdle(ctx, 0, time.Now())
	assert.Error(t, err)
}

func TestSessionStore_ReadKeepsSessionAlive(t *testing.T) {
	store := NewSessionStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "sid", testutil.NewAuthResult().Build()))
	start := time.Now()

	// A read refreshes the idle clock, so a cutoff just before the read keeps it.
	_, err := store.Read(ctx, "sid")
	require.NoError(t, err)
	expired, err := store.ExpireIdle(ctx, time.Minute, start.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestSessionStore_RetireAnnouncesReplacement(t *testing.T) {
	store := NewSessionStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Write(ctx, "sid", testutil.NewAuthResult().Build()))
	events, err := store.Subscribe(ctx, "sid")
	require.NoError(t, err)

	require.NoError(t, store.Retire(ctx, "sid"))
	require.NoError(t, store.Retire(ctx, ""))
	assert.Zero(t, store.Len())

	select {
	case ev := <-events:
		assert.Equal(t, domainauth.SessionEvent{SessionID: "sid", Kind: domainauth.EventReplaced}, ev)
	case <-time.After(time.Second):
		t.Fatal("no event after retire")
	}
}
