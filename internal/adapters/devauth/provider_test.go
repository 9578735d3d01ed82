package devauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
)

func hashFor(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestProvider(t *testing.T, now time.Time) *Provider {
	t.Helper()
	p, err := NewProvider(Config{
		Users: []string{
			"alice@example.com:" + hashFor(t, "secret1") + ":Alice Admin:1",
			"bob@example.com:" + hashFor(t, "hunter2") + ":Bob: Field Team:2",
		},
		SigningKey: "test-signing-key",
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	return p
}

func TestLogin_Success(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	p := newTestProvider(t, now)

	res, err := p.Login(context.Background(), domainauth.Credentials{Email: " Alice@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.User{ID: 1, Name: "Alice Admin", Email: "alice@example.com", Role: 1}, res.User)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	assert.NotEqual(t, res.AccessToken, res.RefreshToken)

	claims, err := p.ParseToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.Use)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, domainauth.RoleAdmin, claims.Role)
	assert.Equal(t, now.Add(defaultAccessTTL), claims.ExpiresAt.Time.UTC())

	refresh, err := p.ParseToken(res.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refresh.Use)
}

func TestLogin_NameWithColon(t *testing.T) {
	p := newTestProvider(t, time.Now())
	res, err := p.Login(context.Background(), domainauth.Credentials{Email: "bob@example.com", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "Bob: Field Team", res.User.Name)
	assert.Equal(t, domainauth.Role(2), res.User.Role)
	assert.False(t, res.User.IsAdmin())
}

func TestLogin_Rejections(t *testing.T) {
	p := newTestProvider(t, time.Now())

	tests := []struct {
		name  string
		creds domainauth.Credentials
	}{
		{"unknown user", domainauth.Credentials{Email: "nobody@example.com", Password: "secret1"}},
		{"wrong password", domainauth.Credentials{Email: "alice@example.com", Password: "nope"}},
		{"empty password", domainauth.Credentials{Email: "alice@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Login(context.Background(), tt.creds)
			require.Error(t, err)
			assert.True(t, apperrors.IsAuthentication(err))
			assert.Equal(t, InvalidCredentialsMessage, apperrors.UserMessage(err, ""))
		})
	}
}

func TestLogin_CancelledContext(t *testing.T) {
	p := newTestProvider(t, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Login(ctx, domainauth.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.DefaultAuthenticationMessage, apperrors.UserMessage(err, ""))
}

func TestParseToken_Rejects(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	p := newTestProvider(t, now)
	res, err := p.Login(context.Background(), domainauth.Credentials{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	later := newTestProvider(t, now.Add(9*time.Hour))
	_, err = later.ParseToken(res.AccessToken)
	assert.Error(t, err, "expired access token")

	other, err := NewProvider(Config{
		Users: []string{"alice@example.com:" + hashFor(t, "secret1") + ":Alice:1"},
		Now:   func() time.Time { return now },
	})
	require.NoError(t, err)
	_, err = other.ParseToken(res.AccessToken)
	assert.Error(t, err, "different signing key")
}

func TestNewProvider_Validation(t *testing.T) {
	good := hashFor(t, "pw")
	tests := []struct {
		name  string
		users []string
	}{
		{"no users", nil},
		{"no separators", []string{"alice"}},
		{"missing hash", []string{"alice@example.com::Alice:1"}},
		{"bad hash", []string{"alice@example.com:plaintext:Alice:1"}},
		{"missing role", []string{"alice@example.com:" + good}},
		{"non numeric role", []string{"alice@example.com:" + good + ":Alice:admin"}},
		{"duplicate", []string{
			"alice@example.com:" + good + ":Alice:1",
			"ALICE@example.com:" + good + ":Alice 2:2",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(Config{Users: tt.users})
			assert.Error(t, err)
		})
	}
}

func TestParseUser_DefaultsNameToEmail(t *testing.T) {
	u, err := parseUser("ops@example.com:" + hashFor(t, "pw") + "::2")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", u.user.Name)
}

func TestRandomString(t *testing.T) {
	for _, n := range []int{0, 1, 7, 24, 48} {
		s, err := randomString(n)
		require.NoError(t, err)
		assert.Len(t, s, n)
	}
}
