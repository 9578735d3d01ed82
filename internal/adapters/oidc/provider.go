// Package oidc provides a credential gateway that exchanges an email and
// password for tokens at an OpenID Connect provider using the resource owner
// password grant.
package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/senpy/sen-dashboard/internal/adapters/authroles"
	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/ports"
)

var _ ports.CredentialGateway = (*Provider)(nil)

const (
	defaultScope       = "openid profile email"
	defaultRoleClaim   = "rol"
	defaultGroupsClaim = "groups"
)

// RoleMapper derives a role from identity-provider groups.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}

// Provider implements ports.CredentialGateway using OIDC discovery and the
// OAuth2 password grant.
type Provider struct {
	config      *oauth2.Config
	httpClient  *http.Client
	roleClaim   string
	groupsClaim string
	roles       RoleMapper
	logger      *slog.Logger

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC gateway.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	// AuthInParams sends client credentials in the form body instead of a
	// Basic auth header. oauth2's auto-detection would otherwise retry a
	// rejected request with the other style.
	AuthInParams bool
	// RoleClaim names a numeric claim carrying the role. When absent on a
	// token the role is derived from GroupsClaim via Roles.
	RoleClaim   string
	GroupsClaim string
	Roles       RoleMapper
	HTTPClient  *http.Client // Optional, defaults to a client with a 30s timeout
	Logger      *slog.Logger
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider discovers the issuer and builds the gateway. Discovery happens
// once, here, using ctx.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		httpClient:  httpClient,
		roleClaim:   firstNonEmpty(config.RoleClaim, defaultRoleClaim),
		groupsClaim: firstNonEmpty(config.GroupsClaim, defaultGroupsClaim),
		roles:       config.Roles,
		logger:      config.Logger,
	}
	if p.roles == nil {
		p.roles = authroles.StaticRoleMapper{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(p.clientContext(ctx), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	endpoint := op.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInHeader
	if config.AuthInParams {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	scope := config.Scope
	if strings.TrimSpace(scope) == "" {
		scope = defaultScope
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       strings.Fields(scope),
		Endpoint:     endpoint,
	}

	return p, nil
}

// TokenURL returns the discovered token endpoint.
func (p *Provider) TokenURL() string { return p.config.Endpoint.TokenURL }

// Login sends a single password grant request and maps the returned tokens
// and identity claims to an AuthResult.
func (p *Provider) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.AuthResult, error) {
	ctx = p.clientContext(ctx)

	token, err := p.config.PasswordCredentialsToken(ctx, creds.Email, creds.Password)
	if err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication(retrieveErrorMessage(err), fmt.Errorf("password grant: %w", err))
	}

	fields, err := p.extractFromIDToken(ctx, token)
	if err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication("", fmt.Errorf("extract id_token: %w", err))
	}

	if fields.email == "" || fields.name == "" {
		if fillErr := p.fillFromUserInfo(ctx, token.AccessToken, &fields); fillErr != nil {
			p.logger.WarnContext(ctx, "oidc userinfo lookup failed", "error", fillErr)
		}
	}
	if fields.email == "" {
		fields.email = creds.Email
	}

	role := fields.role
	if role == 0 {
		role = p.roles.Map(fields.groups)
	}

	return domainauth.AuthResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		User: domainauth.User{
			ID:    fields.userID,
			Name:  firstNonEmpty(fields.name, fields.email),
			Email: fields.email,
			Role:  role,
		},
	}, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// retrieveErrorMessage surfaces the provider's error_description; other
// failures fall back to the generic message.
func retrieveErrorMessage(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return strings.TrimSpace(re.ErrorDescription)
	}
	return ""
}

// UserInfo represents the user information from the OIDC userinfo endpoint.
type UserInfo struct {
	Subject string   `json:"sub"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Groups  []string `json:"groups"`
}

func (p *Provider) getUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	var userInfo UserInfo
	if claimsErr := ui.Claims(&userInfo); claimsErr != nil {
		return nil, fmt.Errorf("decode user info: %w", claimsErr)
	}
	return &userInfo, nil
}

type idFields struct {
	userID int
	name   string
	email  string
	role   domainauth.Role
	groups []string
}

func (p *Provider) extractFromIDToken(ctx context.Context, tok *oauth2.Token) (idFields, error) {
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return idFields{}, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return idFields{}, fmt.Errorf("verify id_token: %w", err)
	}
	var claims map[string]any
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return idFields{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	return p.mapClaims(claims), nil
}

// mapClaims maps raw id token claims into idFields. The numeric user id comes
// from "user_id" when present, else from a numeric "sub".
func (p *Provider) mapClaims(c map[string]any) idFields {
	f := idFields{
		name:   firstNonEmpty(stringClaim(c, "name"), stringClaim(c, "preferred_username")),
		email:  stringClaim(c, "email"),
		groups: stringsClaim(c, p.groupsClaim),
	}
	if id, ok := intClaim(c, "user_id"); ok {
		f.userID = id
	} else if id, err := strconv.Atoi(stringClaim(c, "sub")); err == nil {
		f.userID = id
	}
	if role, ok := intClaim(c, p.roleClaim); ok {
		f.role = domainauth.Role(role)
	}
	return f
}

func (p *Provider) fillFromUserInfo(ctx context.Context, accessToken string, f *idFields) error {
	ui, err := p.getUserInfo(ctx, accessToken)
	if err != nil {
		return err
	}
	if f.name == "" {
		f.name = ui.Name
	}
	if f.email == "" {
		f.email = ui.Email
	}
	if len(f.groups) == 0 {
		f.groups = ui.Groups
	}
	return nil
}

func stringClaim(c map[string]any, key string) string {
	s, _ := c[key].(string)
	return strings.TrimSpace(s)
}

func intClaim(c map[string]any, key string) (int, bool) {
	switch v := c[key].(type) {
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

func stringsClaim(c map[string]any, key string) []string {
	raw, ok := c[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
