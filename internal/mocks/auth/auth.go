package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"
	"sync/atomic"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.CredentialGateway = (*MockGateway)(nil)
	_ ports.SessionStore      = (*FailingSessionStore)(nil)
)

// MockGateway is a credential gateway with a fixed user table.
// Known email/password pairs succeed; everything else fails with the server
// message in RejectMessage (or the default authentication message).
type MockGateway struct {
	LoginFunc func(ctx context.Context, creds domainauth.Credentials) (domainauth.AuthResult, error)

	Users         map[string]MockUser
	RejectMessage string

	calls atomic.Int32
}

// MockUser is one entry of MockGateway's user table.
type MockUser struct {
	Password string
	Result   domainauth.AuthResult
}

// NewMockGateway creates a MockGateway knowing alice@example.com/secret1, an
// administrator, and bob@example.com/hunter2, a standard user.
func NewMockGateway() *MockGateway {
	return &MockGateway{Users: map[string]MockUser{
		"alice@example.com": {
			Password: "secret1",
			Result: domainauth.AuthResult{
				AccessToken:  "tok123",
				RefreshToken: "ref456",
				User:         domainauth.User{ID: 1, Name: "Alice", Email: "alice@example.com", Role: domainauth.RoleAdmin},
			},
		},
		"bob@example.com": {
			Password: "hunter2",
			Result: domainauth.AuthResult{
				AccessToken:  "tok789",
				RefreshToken: "ref012",
				User:         domainauth.User{ID: 2, Name: "Bob", Email: "bob@example.com", Role: domainauth.RoleUser},
			},
		},
	}}
}

// Login implements ports.CredentialGateway.
func (m *MockGateway) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.AuthResult, error) {
	m.calls.Add(1)
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, creds)
	}
	u, ok := m.Users[creds.Email]
	if !ok || u.Password != creds.Password {
		return domainauth.AuthResult{}, apperrors.Authentication(m.RejectMessage, nil)
	}
	return u.Result, nil
}

// Calls reports how many times Login was invoked.
func (m *MockGateway) Calls() int { return int(m.calls.Load()) }

// BlockingGateway holds every Login until Release is closed, so tests can
// observe a login in flight.
type BlockingGateway struct {
	Result  domainauth.AuthResult
	Entered chan struct{}
	Release chan struct{}

	once sync.Once
}

// NewBlockingGateway returns a gateway that succeeds with res once released.
func NewBlockingGateway(res domainauth.AuthResult) *BlockingGateway {
	return &BlockingGateway{Result: res, Entered: make(chan struct{}), Release: make(chan struct{})}
}

// Login implements ports.CredentialGateway.
func (b *BlockingGateway) Login(ctx context.Context, _ domainauth.Credentials) (domainauth.AuthResult, error) {
	b.once.Do(func() { close(b.Entered) })
	select {
	case <-b.Release:
		return b.Result, nil
	case <-ctx.Done():
		return domainauth.AuthResult{}, apperrors.Authentication("", ctx.Err())
	}
}

// FailingSessionStore fails every operation with Err.
type FailingSessionStore struct {
	Err error
}

func (f FailingSessionStore) Write(context.Context, string, domainauth.AuthResult) error {
	return f.Err
}

func (f FailingSessionStore) Read(context.Context, string) (domainauth.Session, error) {
	return domainauth.Session{}, f.Err
}

func (f FailingSessionStore) Clear(context.Context, string) error { return f.Err }

func (f FailingSessionStore) Subscribe(context.Context, string) (<-chan domainauth.SessionEvent, error) {
	return nil, f.Err
}
