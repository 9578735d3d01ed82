package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/senpy/sen-dashboard/config"
	"github.com/senpy/sen-dashboard/internal/adapters/authroles"
	"github.com/senpy/sen-dashboard/internal/adapters/credgateway"
	"github.com/senpy/sen-dashboard/internal/adapters/devauth"
	"github.com/senpy/sen-dashboard/internal/adapters/memory"
	"github.com/senpy/sen-dashboard/internal/adapters/oidc"
	redisadapter "github.com/senpy/sen-dashboard/internal/adapters/redis"
	"github.com/senpy/sen-dashboard/internal/ports"
)

// BuildGateway creates the credential gateway selected by cfg.Mode. OIDC
// discovery runs once, here, bounded by ctx.
//
//nolint:ireturn // the gateway implementation is chosen by configuration.
func BuildGateway(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (ports.CredentialGateway, error) {
	switch cfg.Mode {
	case config.AuthModeOIDC:
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			Scope:        cfg.OIDC.Scope,
			DiscoveryURL: cfg.OIDC.DiscoveryURL,
			AuthInParams: cfg.OIDC.AuthInParams,
			RoleClaim:    cfg.OIDC.RoleClaim,
			GroupsClaim:  cfg.OIDC.GroupsClaim,
			Roles:        authroles.StaticRoleMapper{AdminGroup: cfg.OIDC.AdminGroup},
			HTTPClient:   &http.Client{Timeout: cfg.OIDC.Timeout},
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create OIDC gateway: %w", err)
		}
		return prov, nil

	case config.AuthModeDev:
		prov, err := devauth.NewProvider(devauth.Config{
			Users:      cfg.DevAuth.Users,
			SigningKey: cfg.DevAuth.SigningKey,
			Issuer:     cfg.DevAuth.Issuer,
			AccessTTL:  cfg.DevAuth.AccessTTL,
			RefreshTTL: cfg.DevAuth.RefreshTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("create dev gateway: %w", err)
		}
		if logger != nil {
			logger.Warn("dev credential gateway enabled; do not use in production", "users", len(cfg.DevAuth.Users))
		}
		return prov, nil

	default:
		gw, err := credgateway.New(credgateway.Options{
			BaseURL:         cfg.Login.BaseURL,
			ErrorExpression: cfg.Login.ErrorExpression,
			Timeout:         cfg.Login.Timeout,
			Logger:          logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create login gateway: %w", err)
		}
		return gw, nil
	}
}

// BuildSessionStore creates the session store selected by cfg.Backend. The
// Redis backend requires client.
//
//nolint:ireturn // the store implementation is chosen by configuration.
func BuildSessionStore(cfg config.SessionConfig, client redis.UniversalClient, logger *slog.Logger) (ports.SessionStore, error) {
	if cfg.Backend != config.SessionBackendRedis {
		return memory.NewSessionStore(logger), nil
	}
	if client == nil {
		return nil, errors.New("redis session backend selected but no redis client configured")
	}
	return redisadapter.NewSessionStore(redisadapter.SessionStoreOptions{
		Client:  client,
		Prefix:  cfg.KeyPrefix,
		IdleTTL: cfg.IdleTTL,
		Logger:  logger,
	}), nil
}
