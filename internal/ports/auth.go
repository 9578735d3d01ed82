package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
)

// CredentialGateway exchanges credentials for tokens and a user profile.
type CredentialGateway interface {
	// Login issues at most one request to the identity backend. Every failure is
	// an authentication AppError whose Message is safe to show to the user.
	Login(ctx context.Context, creds domainauth.Credentials) (domainauth.AuthResult, error)
}

// SessionStore holds the session of each browsing context, keyed by session ID.
// Token and user are always written and cleared together.
type SessionStore interface {
	Write(ctx context.Context, sessionID string, res domainauth.AuthResult) error
	// Read returns the zero Session, and no error, when nothing usable is stored.
	Read(ctx context.Context, sessionID string) (domainauth.Session, error)
	// Clear is idempotent.
	Clear(ctx context.Context, sessionID string) error
	// Subscribe delivers change events for sessionID until ctx is done, then
	// closes the channel. Delivery is best-effort and may drop events for slow
	// consumers.
	Subscribe(ctx context.Context, sessionID string) (<-chan domainauth.SessionEvent, error)
}
