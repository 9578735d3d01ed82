// Package credgateway implements the credential gateway against the REST login
// endpoint of the emergency backend.
package credgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/ports"
)

var _ ports.CredentialGateway = (*Gateway)(nil)

const (
	// DefaultBaseURL is the API root of a locally running backend.
	DefaultBaseURL = "http://127.0.0.1:8000/api"
	// DefaultErrorExpression selects the rejection reason in a failure payload.
	DefaultErrorExpression = "error"

	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// Options configures a Gateway.
type Options struct {
	BaseURL string
	// ErrorExpression is a JMESPath expression evaluated against a failure
	// payload; a non-empty string result becomes the user-facing message.
	ErrorExpression string
	HTTPClient      *http.Client
	Timeout         time.Duration
	Logger          *slog.Logger
}

// Gateway posts credentials to {BaseURL}/login/.
type Gateway struct {
	loginURL string
	errExpr  string
	client   *http.Client
	logger   *slog.Logger
}

// New validates options and returns a Gateway.
func New(opts Options) (*Gateway, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("login base URL must be http(s): %q", opts.BaseURL)
	}

	expr := strings.TrimSpace(opts.ErrorExpression)
	if expr == "" {
		expr = DefaultErrorExpression
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile login error expression %q: %w", expr, err)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		loginURL: base + "/login/",
		errExpr:  expr,
		client:   client,
		logger:   logger,
	}, nil
}

// LoginURL returns the endpoint the gateway posts to.
func (g *Gateway) LoginURL() string { return g.loginURL }

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
	User *domainauth.User `json:"user"`
}

// Login implements ports.CredentialGateway. It sends exactly one request and
// never retries.
func (g *Gateway) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.AuthResult, error) {
	body, err := json.Marshal(loginRequest{Email: creds.Email, Password: creds.Password})
	if err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication("", fmt.Errorf("marshal login request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.loginURL, bytes.NewReader(body))
	if err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication("", fmt.Errorf("build login request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication("", fmt.Errorf("send login request: %w", err))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			g.logger.Debug("close login response body", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication("", fmt.Errorf("read login response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := g.failureReason(raw)
		return domainauth.AuthResult{}, apperrors.Authentication(reason,
			fmt.Errorf("login rejected with status %d", resp.StatusCode))
	}

	var out loginResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domainauth.AuthResult{}, apperrors.Authentication("", fmt.Errorf("decode login response: %w", err))
	}
	if out.Tokens.Access == "" || out.User == nil {
		return domainauth.AuthResult{}, apperrors.Authentication("", errors.New("login response missing token or user"))
	}

	return domainauth.AuthResult{
		AccessToken:  out.Tokens.Access,
		RefreshToken: out.Tokens.Refresh,
		User:         *out.User,
	}, nil
}

// failureReason extracts the server-supplied reason, or "" when the payload
// is not JSON or the expression yields no usable string.
func (g *Gateway) failureReason(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	result, err := jmespath.Search(g.errExpr, payload)
	if err != nil {
		g.logger.Debug("evaluate login error expression", "expression", g.errExpr, "error", err)
		return ""
	}
	switch v := result.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		// Django-style field errors arrive as lists of messages.
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
