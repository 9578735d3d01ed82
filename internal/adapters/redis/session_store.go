package redis

// Package redis provides Redis-based adapters for the dashboard.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
)

// Slot names inside a session hash.
const (
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldUser         = "user"
)

const (
	defaultPrefix    = "sen:session:"
	defaultIdleTTL   = 12 * time.Hour
	subscriberBuffer = 8
)

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Client redis.UniversalClient
	// Prefix is prepended to session keys and event channels.
	Prefix string
	// IdleTTL bounds how long an untouched session survives; reads extend it.
	IdleTTL time.Duration
	Logger  *slog.Logger
}

// SessionStore keeps each session in a Redis hash with one field per slot and
// announces changes on a per-session pub/sub channel, so every replica and
// every open tab observes writes and clears.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	s := &SessionStore{
		client: opts.Client,
		prefix: opts.Prefix,
		ttl:    opts.IdleTTL,
		logger: opts.Logger,
	}
	if s.prefix == "" {
		s.prefix = defaultPrefix
	}
	if s.ttl <= 0 {
		s.ttl = defaultIdleTTL
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Key returns the hash key holding a session.
func (s *SessionStore) Key(sessionID string) string { return s.prefix + sessionID }

// Channel returns the pub/sub channel announcing changes to a session.
func (s *SessionStore) Channel(sessionID string) string { return s.prefix + "events:" + sessionID }

// Write records token, refresh token and profile in a single MULTI/EXEC so
// readers never see one without the others.
func (s *SessionStore) Write(ctx context.Context, sessionID string, res domainauth.AuthResult) error {
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
	event, err := s.encodeEvent(sessionID, domainauth.EventWritten)
	if err != nil {
		return err
	}

	key := s.Key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			FieldAccessToken, res.AccessToken,
			FieldRefreshToken, res.RefreshToken,
			FieldUser, string(profile),
		)
		pipe.Expire(ctx, key, s.ttl)
		pipe.Publish(ctx, s.Channel(sessionID), event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write session: %w", err)
	}
	return nil
}

// Read returns the stored session. Missing keys, half-written pairs and
// unparsable profiles all read as the absent session; the latter two are
// removed so the next request starts clean.
func (s *SessionStore) Read(ctx context.Context, sessionID string) (domainauth.Session, error) {
	if sessionID == "" {
		return domainauth.Session{}, nil
	}

	key := s.Key(sessionID)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, nil
		}
		return domainauth.Session{}, fmt.Errorf("redis read session: %w", err)
	}
	if len(fields) == 0 {
		return domainauth.Session{}, nil
	}

	sess, decodeErr := decodeSession(fields)
	if decodeErr != nil {
		s.logger.WarnContext(ctx, "discarding malformed session",
			"session_id", sessionID,
			"error", decodeErr,
		)
		if clearErr := s.Clear(ctx, sessionID); clearErr != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup malformed session: %w", clearErr)
		}
		return domainauth.Session{}, nil
	}

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "extend session ttl failed", "session_id", sessionID, "error", err)
	}
	return sess, nil
}

func decodeSession(fields map[string]string) (domainauth.Session, error) {
	token := fields[FieldAccessToken]
	raw := fields[FieldUser]
	if token == "" || raw == "" {
		return domainauth.Session{}, apperrors.MalformedSession(errors.New("token and user must be stored together"))
	}

	var user domainauth.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return domainauth.Session{}, apperrors.MalformedSession(err)
	}
	return domainauth.Session{
		Token:        token,
		RefreshToken: fields[FieldRefreshToken],
		User:         &user,
	}, nil
}

// Clear removes every slot of the session and announces it. Clearing an
// absent session succeeds.
func (s *SessionStore) Clear(ctx context.Context, sessionID string) error {
	return s.remove(ctx, sessionID, domainauth.EventCleared)
}

// Retire removes the session like Clear but tells subscribers it was
// replaced rather than ended.
func (s *SessionStore) Retire(ctx context.Context, sessionID string) error {
	return s.remove(ctx, sessionID, domainauth.EventReplaced)
}

func (s *SessionStore) remove(ctx context.Context, sessionID string, kind domainauth.EventKind) error {
	if sessionID == "" {
		return nil
	}
	event, err := s.encodeEvent(sessionID, kind)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.Key(sessionID))
		pipe.Publish(ctx, s.Channel(sessionID), event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis %s session: %w", kind, err)
	}
	return nil
}

// Subscribe forwards change events published for sessionID until ctx ends.
func (s *SessionStore) Subscribe(ctx context.Context, sessionID string) (<-chan domainauth.SessionEvent, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	pubsub := s.client.Subscribe(ctx, s.Channel(sessionID))
	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan domainauth.SessionEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domainauth.SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.logger.Warn("ignoring malformed session event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				default:
					s.logger.Debug("dropping session event for slow subscriber", "session_id", sessionID)
				}
			}
		}
	}()
	return out, nil
}

func (s *SessionStore) encodeEvent(sessionID string, kind domainauth.EventKind) (string, error) {
	b, err := json.Marshal(domainauth.SessionEvent{SessionID: sessionID, Kind: kind})
	if err != nil {
		return "", fmt.Errorf("marshal session event: %w", err)
	}
	return string(b), nil
}

// Existing reports which of sessionIDs still have a stored hash. Sessions
// whose key TTL ran out are absent.
func (s *SessionStore) Existing(ctx context.Context, sessionIDs []string) (map[string]bool, error) {
	cmds := make([]*redis.IntCmd, len(sessionIDs))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range sessionIDs {
			cmds[i] = pipe.Exists(ctx, s.Key(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis session exists: %w", err)
	}
	out := make(map[string]bool, len(sessionIDs))
	for i, id := range sessionIDs {
		out[id] = cmds[i].Val() > 0
	}
	return out, nil
}

// SessionSummary describes a stored session for operational listings.
type SessionSummary struct {
	ID    string
	User  *domainauth.User
	TTL   time.Duration
	Valid bool
}

// List scans up to limit stored sessions. It is meant for operators, not for
// request handling.
func (s *SessionStore) List(ctx context.Context, limit int) ([]SessionSummary, error) {
	var out []SessionSummary
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		id := strings.TrimPrefix(key, s.prefix)
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("redis read %s: %w", key, err)
		}
		ttl, err := s.client.TTL(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ttl %s: %w", key, err)
		}
		summary := SessionSummary{ID: id, TTL: ttl}
		if sess, decodeErr := decodeSession(fields); decodeErr == nil {
			summary.User = sess.User
			summary.Valid = true
		}
		out = append(out, summary)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan sessions: %w", err)
	}
	return out, nil
}
