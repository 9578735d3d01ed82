package credgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
)

func newTestGateway(t *testing.T, srv *httptest.Server, expr string) *Gateway {
	t.Helper()
	gw, err := New(Options{BaseURL: srv.URL + "/api/", ErrorExpression: expr, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return gw
}

func TestLogin_Success(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/login/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"email": "alice@example.com", "password": "secret1"}, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tokens":{"access":"tok123","refresh":"ref456"},` +
			`"user":{"id":1,"nombre":"Alice","email":"alice@example.com","rol":1}}`))
	}))
	defer srv.Close()

	gw := newTestGateway(t, srv, "")
	res, err := gw.Login(context.Background(), domainauth.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	assert.Equal(t, domainauth.AuthResult{
		AccessToken:  "tok123",
		RefreshToken: "ref456",
		User:         domainauth.User{ID: 1, Name: "Alice", Email: "alice@example.com", Role: 1},
	}, res)
	assert.EqualValues(t, 1, calls.Load())
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		expr    string
		wantMsg string
	}{
		{"server reason", http.StatusUnauthorized, `{"error":"Credenciales inválidas"}`, "", "Credenciales inválidas"},
		{"no reason", http.StatusUnauthorized, `{}`, "", "Error al iniciar sesión"},
		{"non json", http.StatusBadGateway, `<html>bad gateway</html>`, "", "Error al iniciar sesión"},
		{"empty body", http.StatusInternalServerError, ``, "", "Error al iniciar sesión"},
		{"non string reason", http.StatusBadRequest, `{"error":{"code":3}}`, "", "Error al iniciar sesión"},
		{"custom expression", http.StatusBadRequest, `{"detail":"Cuenta inactiva"}`, "error || detail", "Cuenta inactiva"},
		{"list reason", http.StatusBadRequest, `{"email":["Correo inválido"]}`, "email", "Correo inválido"},
		{"success without token", http.StatusOK, `{"tokens":{},"user":{"id":1}}`, "", "Error al iniciar sesión"},
		{"success without user", http.StatusOK, `{"tokens":{"access":"t"}}`, "", "Error al iniciar sesión"},
		{"success not json", http.StatusOK, `nope`, "", "Error al iniciar sesión"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			gw := newTestGateway(t, srv, tt.expr)
			_, err := gw.Login(context.Background(), domainauth.Credentials{Email: "a@b.c", Password: "x"})
			require.Error(t, err)
			assert.True(t, apperrors.IsAuthentication(err))
			assert.Equal(t, tt.wantMsg, apperrors.UserMessage(err, ""))
			assert.EqualValues(t, 1, calls.Load(), "exactly one request, no retry")
		})
	}
}

func TestLogin_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	gw := newTestGateway(t, srv, "")
	srv.Close()

	_, err := gw.Login(context.Background(), domainauth.Credentials{Email: "a@b.c", Password: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))
	assert.Equal(t, "Error al iniciar sesión", apperrors.UserMessage(err, ""))
}

func TestLogin_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	// Runs before Close, which waits for the handler to return.
	defer close(release)

	gw := newTestGateway(t, srv, "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.Login(ctx, domainauth.Credentials{Email: "a@b.c", Password: "x"})
	assert.True(t, apperrors.IsAuthentication(err))
}

func TestNew_Validation(t *testing.T) {
	gw, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000/api/login/", gw.LoginURL())

	_, err = New(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	_, err = New(Options{ErrorExpression: "error[[["})
	assert.Error(t, err)
}
