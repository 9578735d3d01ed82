package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/observability/metrics"
	"github.com/senpy/sen-dashboard/internal/observability/statsd"
	"github.com/senpy/sen-dashboard/internal/ports"
)

// LoginInProgressMessage rejects a second submission while one is pending.
const LoginInProgressMessage = "Inicio de sesión en curso"

// SessionRetirer is implemented by stores that can tell subscribers a session
// moved to a new ID. Stores without it are cleared instead.
type SessionRetirer interface {
	Retire(ctx context.Context, sessionID string) error
}

// SessionCleaner drops per-session state owned by another service on logout.
type SessionCleaner interface {
	DropSession(ctx context.Context, sessionID string)
}

// AuthServiceConfig holds optional collaborators for AuthService.
type AuthServiceConfig struct {
	GatewayName string
	Metrics     statsd.Sink
	Logger      *slog.Logger
	Cleaners    []SessionCleaner
	Now         func() time.Time
	// NewID mints the session ID issued on login. Defaults to NewSessionID.
	NewID func() string
}

// LoginResult is a successful login: the session and the ID it is now
// stored under, which replaces the caller's pre-login ID.
type LoginResult struct {
	SessionID string
	Session   domainauth.Session
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Gateway  ports.CredentialGateway
	Sessions ports.SessionStore
	Config   AuthServiceConfig
}

// AuthService orchestrates login and logout by coordinating the credential
// gateway and the session store.
type AuthService struct {
	gateway  ports.CredentialGateway
	sessions ports.SessionStore
	cfg      AuthServiceConfig
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Gateway == nil {
		panic("CredentialGateway is required")
	}
	if opts.Sessions == nil {
		panic("SessionStore is required")
	}
	cfg := opts.Config
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = NewSessionID
	}
	if cfg.GatewayName == "" {
		cfg.GatewayName = "rest"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		gateway:  opts.Gateway,
		sessions: opts.Sessions,
		cfg:      cfg,
		logger:   logger.With("component", "auth"),
		inFlight: make(map[string]struct{}),
	}
}

// NewSessionID creates a cryptographically secure random session ID.
func NewSessionID() string {
	return uuid.NewString()
}

// Login exchanges credentials through the gateway and, on success, records the
// result under a freshly minted session ID. The pre-login ID is cleared so it
// never becomes authenticated. A failed attempt leaves the store untouched.
func (s *AuthService) Login(ctx context.Context, sessionID string, creds domainauth.Credentials) (LoginResult, error) {
	if sessionID == "" {
		return LoginResult{}, errors.New("session ID is required")
	}
	if !s.acquire(sessionID) {
		metrics.EmitLogin(s.cfg.Metrics, metrics.LoginMetric{Gateway: s.cfg.GatewayName, Result: metrics.ResultBusy})
		return LoginResult{}, apperrors.Validation(LoginInProgressMessage)
	}
	defer s.release(sessionID)

	start := s.cfg.Now()
	res, err := s.gateway.Login(ctx, creds)
	elapsed := s.cfg.Now().Sub(start)
	if err != nil {
		if !apperrors.IsAuthentication(err) {
			err = apperrors.Authentication("", err)
		}
		metrics.EmitLogin(s.cfg.Metrics, metrics.LoginMetric{
			Gateway:  s.cfg.GatewayName,
			Result:   metrics.ResultFailure,
			Duration: elapsed,
			Err:      err,
		})
		s.logger.InfoContext(ctx, "login rejected", "email", creds.Email, "error", err)
		return LoginResult{}, err
	}

	newID := s.cfg.NewID()
	if err := s.sessions.Write(ctx, newID, res); err != nil {
		return LoginResult{}, fmt.Errorf("write session: %w", err)
	}
	if err := s.retire(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "retire pre-login session failed", "error", err)
	}
	metrics.EmitLogin(s.cfg.Metrics, metrics.LoginMetric{
		Gateway:  s.cfg.GatewayName,
		Result:   metrics.ResultSuccess,
		Duration: elapsed,
	})
	s.logger.InfoContext(ctx, "login succeeded", "user_id", res.User.ID, "admin", res.User.IsAdmin())

	return LoginResult{SessionID: newID, Session: domainauth.SessionFrom(res)}, nil
}

// CurrentSession reads the session of sessionID. An empty ID is an
// unauthenticated visitor.
func (s *AuthService) CurrentSession(ctx context.Context, sessionID string) (domainauth.Session, error) {
	if sessionID == "" {
		return domainauth.Session{}, nil
	}
	sess, err := s.sessions.Read(ctx, sessionID)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("read session: %w", err)
	}
	return sess, nil
}

// Logout clears token, refresh token and user together and drops session
// scoped state. It is idempotent and performs no remote call.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil // Nothing to logout
	}

	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	for _, c := range s.cfg.Cleaners {
		c.DropSession(ctx, sessionID)
	}
	metrics.EmitLogout(s.cfg.Metrics)
	return nil
}

func (s *AuthService) retire(ctx context.Context, sessionID string) error {
	if r, ok := s.sessions.(SessionRetirer); ok {
		return r.Retire(ctx, sessionID)
	}
	return s.sessions.Clear(ctx, sessionID)
}

func (s *AuthService) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = struct{}{}
	return true
}

func (s *AuthService) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sessionID)
}
