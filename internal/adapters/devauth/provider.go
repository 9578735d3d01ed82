// Package devauth provides a config-driven credential gateway for local
// development. Users are declared in configuration with bcrypt password hashes
// and tokens are signed locally, so no identity backend is needed.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/ports"
)

var _ ports.CredentialGateway = (*Provider)(nil)

// InvalidCredentialsMessage is returned for unknown users and wrong passwords alike.
const InvalidCredentialsMessage = "Credenciales inválidas"

const (
	defaultIssuer     = "sen-dashboard-dev"
	defaultAccessTTL  = 8 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour

	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// Config controls the dev gateway.
type Config struct {
	// Users are entries of the form "email:bcrypt-hash:name:role".
	Users []string
	// SigningKey signs issued tokens with HS256. A random key is generated when empty.
	SigningKey string
	Issuer     string
	AccessTTL  time.Duration // default 8h when zero
	RefreshTTL time.Duration // default 7d when zero
	Now        func() time.Time
}

type devUser struct {
	user domainauth.User
	hash []byte
}

// Provider implements ports.CredentialGateway without any network call.
type Provider struct {
	users      map[string]devUser
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Claims are carried by tokens issued by the dev gateway.
type Claims struct {
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  domainauth.Role `json:"rol"`
	Use   string          `json:"use"`
	jwt.RegisteredClaims
}

// NewProvider constructs a dev gateway from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if len(cfg.Users) == 0 {
		return nil, errors.New("dev auth: at least one user is required")
	}

	users := make(map[string]devUser, len(cfg.Users))
	for i, entry := range cfg.Users {
		u, err := parseUser(entry)
		if err != nil {
			return nil, fmt.Errorf("dev auth: user %d: %w", i+1, err)
		}
		u.user.ID = i + 1
		key := normalizeEmail(u.user.Email)
		if _, dup := users[key]; dup {
			return nil, fmt.Errorf("dev auth: duplicate user %q", u.user.Email)
		}
		users[key] = u
	}

	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		generated, err := randomString(48)
		if err != nil {
			return nil, fmt.Errorf("dev auth: generate signing key: %w", err)
		}
		key = []byte(generated)
	}

	p := &Provider{
		users:      users,
		key:        key,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}
	if p.issuer == "" {
		p.issuer = defaultIssuer
	}
	if p.accessTTL <= 0 {
		p.accessTTL = defaultAccessTTL
	}
	if p.refreshTTL <= 0 {
		p.refreshTTL = defaultRefreshTTL
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// parseUser parses one "email:bcrypt-hash:name:role" entry. The name may
// contain colons; the role is the trailing integer.
func parseUser(entry string) (devUser, error) {
	email, rest, ok := strings.Cut(strings.TrimSpace(entry), ":")
	if !ok || email == "" {
		return devUser{}, errors.New("expected email:bcrypt-hash:name:role")
	}
	hash, rest, ok := strings.Cut(rest, ":")
	if !ok || hash == "" {
		return devUser{}, errors.New("missing password hash")
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return devUser{}, fmt.Errorf("invalid bcrypt hash: %w", err)
	}
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return devUser{}, errors.New("missing role")
	}
	name, roleText := strings.TrimSpace(rest[:idx]), strings.TrimSpace(rest[idx+1:])
	role, err := strconv.Atoi(roleText)
	if err != nil {
		return devUser{}, fmt.Errorf("invalid role %q", roleText)
	}
	if name == "" {
		name = email
	}
	return devUser{
		user: domainauth.User{Name: name, Email: email, Role: domainauth.Role(role)},
		hash: []byte(hash),
	}, nil
}

// Login verifies the password against the configured hash and issues a signed
// access and refresh token pair.
func (p *Provider) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.AuthResult, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication("", err)
	}

	u, ok := p.users[normalizeEmail(creds.Email)]
	if !ok {
		return domainauth.AuthResult{}, apperrors.Authentication(InvalidCredentialsMessage, errors.New("unknown user"))
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(creds.Password)); err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication(InvalidCredentialsMessage, err)
	}

	access, err := p.sign(u.user, tokenUseAccess, p.accessTTL)
	if err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication("", err)
	}
	refresh, err := p.sign(u.user, tokenUseRefresh, p.refreshTTL)
	if err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication("", err)
	}

	return domainauth.AuthResult{AccessToken: access, RefreshToken: refresh, User: u.user}, nil
}

// ParseToken validates a token issued by this provider and returns its claims.
func (p *Provider) ParseToken(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return p.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse dev token: %w", err)
	}
	return &claims, nil
}

func (p *Provider) sign(u domainauth.User, use string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
		Use:   use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    p.issuer,
			Subject:   strconv.Itoa(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", use, err)
	}
	return s, nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	return s[:n], nil
}
