package httpx

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/senpy/sen-dashboard/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Int("bytes", ww.bytes),
				slog.Bool("htmx", IsHTMX(r)),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Flush implements http.Flusher.
func (w *respWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack implements http.Hijacker so websocket upgrades pass through.
func (w *respWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		w.status = http.StatusSwitchingProtocols
		return h.Hijack()
	}
	return nil, nil, errors.New("http.Hijacker not supported")
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultSessionCookieName names the browsing-context cookie.
const DefaultSessionCookieName = "session_id"

// SessionCookieConfig configures the browsing-context cookie.
type SessionCookieConfig struct {
	Name   string
	Domain string
	// NewID mints identifiers for new browsing contexts.
	NewID func() string
}

// SessionCookie makes sure every request belongs to a browsing context. A
// missing or malformed session_id cookie is replaced by a fresh identifier.
// The cookie has no Max-Age, so it ends with the browser session.
func SessionCookie(cfg SessionCookieConfig) func(http.Handler) http.Handler {
	if cfg.Name == "" {
		cfg.Name = DefaultSessionCookieName
	}
	if cfg.NewID == nil {
		cfg.NewID = service.NewSessionID
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cfg.Name); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = cfg.NewID()
				setSessionCookie(w, r, cfg, id)
			}
			next.ServeHTTP(w, r.WithContext(SetSessionIDInContext(r.Context(), id)))
		})
	}
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, cfg SessionCookieConfig, id string) {
	name := cfg.Name
	if name == "" {
		name = DefaultSessionCookieName
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    id,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   r.TLS != nil || isForwardedHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireAccess evaluates the route guard for the request path against a
// fresh session read. Requests that are not allowed are redirected; allowed
// ones carry the session in their context.
func RequireAccess(g GuardService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := g.Evaluate(r.Context(), GetSessionIDFromContext(r.Context()), r.URL.Path)
			if !res.Allow {
				redirectTo(w, r, res.Redirect)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), res.Session)))
		})
	}
}

// RequireAdmin rejects sessions without the administrator role. It must run
// after RequireAccess.
func RequireAdmin(forbidden http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s, ok := GetSessionFromContext(r.Context()); !ok || !s.IsAdmin() {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
