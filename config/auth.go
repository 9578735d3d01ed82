package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects the credential gateway.
type AuthMode string

const (
	// AuthModeREST posts credentials to the backend's /login/ endpoint.
	AuthModeREST AuthMode = "rest"
	// AuthModeOIDC uses the OAuth2 password grant against an OIDC issuer.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev checks credentials against locally configured users (development only).
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "rest", "oidc", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: rest, oidc, dev)", v)
	}
}

// LoginConfig configures the REST credential gateway.
type LoginConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://127.0.0.1:8000/api"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"10s"`
	// ErrorExpression is a JMESPath expression that extracts the failure reason
	// from an error payload, e.g. "error || detail".
	ErrorExpression string `env:"ERROR_EXPRESSION" envDefault:"error"`
}

// OIDCConfig contains OAuth2/OIDC password grant configuration.
type OIDCConfig struct {
	ClientID     string        `env:"CLIENT_ID"     envDefault:"sen-dashboard"`
	ClientSecret string        `env:"CLIENT_SECRET"`
	Scope        string        `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string        `env:"DISCOVERY_URL"`
	AuthInParams bool          `env:"AUTH_IN_PARAMS" envDefault:"false"`
	RoleClaim    string        `env:"ROLE_CLAIM"    envDefault:"rol"`
	GroupsClaim  string        `env:"GROUPS_CLAIM"  envDefault:"groups"`
	AdminGroup   string        `env:"ADMIN_GROUP"`
	Timeout      time.Duration `env:"TIMEOUT"       envDefault:"10s"`
}

// DevAuthConfig lists local users for AUTH_MODE=dev.
// Each entry is "email:bcrypt-hash:name:role"; entries are separated by ";".
type DevAuthConfig struct {
	Users      []string      `env:"USERS"       envSeparator:";"`
	SigningKey string        `env:"SIGNING_KEY"`
	Issuer     string        `env:"ISSUER"      envDefault:"sen-dashboard-dev"`
	AccessTTL  time.Duration `env:"ACCESS_TTL"  envDefault:"8h"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which credential gateway to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"rest"`

	// Login configuration (used when Mode=rest).
	Login LoginConfig `envPrefix:"LOGIN_"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims string settings and clamps timeouts.
func (a *AuthConfig) Sanitize() {
	a.Login.BaseURL = strings.TrimRight(strings.TrimSpace(a.Login.BaseURL), "/")
	a.Login.ErrorExpression = strings.TrimSpace(a.Login.ErrorExpression)
	if a.Login.Timeout <= 0 {
		a.Login.Timeout = 10 * time.Second
	}
	a.OIDC.DiscoveryURL = strings.TrimSpace(a.OIDC.DiscoveryURL)
	if a.OIDC.Timeout <= 0 {
		a.OIDC.Timeout = 10 * time.Second
	}

	users := a.DevAuth.Users[:0]
	for _, u := range a.DevAuth.Users {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	a.DevAuth.Users = users
}

// Validate reports settings the selected mode cannot run without.
func (a *AuthConfig) Validate() error {
	switch a.Mode {
	case AuthModeOIDC:
		if a.OIDC.DiscoveryURL == "" {
			return fmt.Errorf("OIDC_DISCOVERY_URL is required when AUTH_MODE=oidc")
		}
	case AuthModeDev:
		if len(a.DevAuth.Users) == 0 {
			return fmt.Errorf("DEV_AUTH_USERS is required when AUTH_MODE=dev")
		}
	}
	return nil
}
