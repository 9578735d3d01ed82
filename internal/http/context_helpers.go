package httpx

import (
	"context"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// sessionIDKey carries the browsing-context identifier from the session cookie.
type sessionIDKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// An unauthenticated session leaves ctx unchanged.
func SetSessionInContext(ctx context.Context, session domainauth.Session) context.Context {
	if !session.Authenticated() {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext returns the authenticated session and whether one is present.
func GetSessionFromContext(ctx context.Context) (domainauth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domainauth.Session)
	return s, ok
}

// SetSessionIDInContext records the browsing-context identifier.
func SetSessionIDInContext(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// GetSessionIDFromContext returns the browsing-context identifier, or "".
func GetSessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}
