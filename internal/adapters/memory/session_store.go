// Package memory provides in-process adapters for single-instance deployments
// and tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/ports"
)

var _ ports.SessionStore = (*SessionStore)(nil)

const subscriberBuffer = 8

// Slots mirrors the three persisted session slots. User holds the JSON profile.
type Slots struct {
	AccessToken  string
	RefreshToken string
	User         string
}

// SessionStore keeps sessions in a map guarded by a mutex. Subscribers receive
// events through buffered channels; a full buffer drops the event rather than
// blocking the writer.
type SessionStore struct {
	mu    sync.Mutex
	slots map[string]Slots
	// touched records the last write or successful read of each session.
	touched map[string]time.Time
	subs    map[string]map[chan domainauth.SessionEvent]struct{}
	logger  *slog.Logger
}

// NewSessionStore creates an empty store. A nil logger uses slog.Default.
func NewSessionStore(logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		slots:   make(map[string]Slots),
		touched: make(map[string]time.Time),
		subs:    make(map[string]map[chan domainauth.SessionEvent]struct{}),
		logger:  logger,
	}
}

// Write replaces the session under a single lock acquisition.
func (s *SessionStore) Write(_ context.Context, sessionID string, res domainauth.AuthResult) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if res.AccessToken == "" {
		return errors.New("access token cannot be empty")
	}
	profile, err := json.Marshal(res.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[sessionID] = Slots{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken, User: string(profile)}
	s.touched[sessionID] = time.Now()
	s.publishLocked(sessionID, domainauth.EventWritten)
	return nil
}

// Read decodes the stored slots. Undecodable or half-present data is
// discarded and reads as the absent session.
func (s *SessionStore) Read(ctx context.Context, sessionID string) (domainauth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.slots[sessionID]
	if !ok {
		return domainauth.Session{}, nil
	}
	sess, err := decode(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "discarding malformed session", "session_id", sessionID, "error", err)
		s.deleteLocked(sessionID)
		s.publishLocked(sessionID, domainauth.EventCleared)
		return domainauth.Session{}, nil
	}
	s.touched[sessionID] = time.Now()
	return sess, nil
}

func decode(raw Slots) (domainauth.Session, error) {
	if raw.AccessToken == "" || raw.User == "" {
		return domainauth.Session{}, apperrors.MalformedSession(errors.New("token and user must be stored together"))
	}
	var u domainauth.User
	if err := json.Unmarshal([]byte(raw.User), &u); err != nil {
		return domainauth.Session{}, apperrors.MalformedSession(err)
	}
	return domainauth.Session{Token: raw.AccessToken, RefreshToken: raw.RefreshToken, User: &u}, nil
}

// Clear removes the session; clearing an absent session is not an error.
func (s *SessionStore) Clear(_ context.Context, sessionID string) error {
	s.remove(sessionID, domainauth.EventCleared)
	return nil
}

// Retire removes the session like Clear but tells subscribers it was
// replaced rather than ended.
func (s *SessionStore) Retire(_ context.Context, sessionID string) error {
	s.remove(sessionID, domainauth.EventReplaced)
	return nil
}

func (s *SessionStore) remove(sessionID string, kind domainauth.EventKind) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(sessionID)
	s.publishLocked(sessionID, kind)
}

// ExpireIdle removes sessions not written or read since now-idle, notifies
// their subscribers, and returns the removed IDs.
func (s *SessionStore) ExpireIdle(_ context.Context, idle time.Duration, now time.Time) ([]string, error) {
	if idle <= 0 {
		return nil, errors.New("idle timeout must be positive")
	}
	cutoff := now.Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id := range s.slots {
		if last, ok := s.touched[id]; ok && !last.Before(cutoff) {
			continue
		}
		s.deleteLocked(id)
		s.publishLocked(id, domainauth.EventCleared)
		expired = append(expired, id)
	}
	return expired, nil
}

func (s *SessionStore) deleteLocked(sessionID string) {
	delete(s.slots, sessionID)
	delete(s.touched, sessionID)
}

// Subscribe registers a listener for sessionID that is removed when ctx ends.
func (s *SessionStore) Subscribe(ctx context.Context, sessionID string) (<-chan domainauth.SessionEvent, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}
	ch := make(chan domainauth.SessionEvent, subscriberBuffer)

	s.mu.Lock()
	if s.subs[sessionID] == nil {
		s.subs[sessionID] = make(map[chan domainauth.SessionEvent]struct{})
	}
	s.subs[sessionID][ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[sessionID], ch)
		if len(s.subs[sessionID]) == 0 {
			delete(s.subs, sessionID)
		}
		close(ch)
	}()
	return ch, nil
}

// PutRaw stores slots verbatim, bypassing encoding. It exists for operational
// tooling and tests that need to reproduce corrupted data.
func (s *SessionStore) PutRaw(sessionID string, raw Slots) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[sessionID] = raw
	s.touched[sessionID] = time.Now()
}

// Len reports the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *SessionStore) publishLocked(sessionID string, kind domainauth.EventKind) {
	ev := domainauth.SessionEvent{SessionID: sessionID, Kind: kind}
	for ch := range s.subs[sessionID] {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("dropping session event for slow subscriber", "session_id", sessionID)
		}
	}
}
