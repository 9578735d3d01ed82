package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/senpy/sen-dashboard/config"
	"github.com/senpy/sen-dashboard/internal/adapters/fixtures"
	"github.com/senpy/sen-dashboard/internal/domain/emergency"
	"github.com/senpy/sen-dashboard/internal/domain/guard"
	httpx "github.com/senpy/sen-dashboard/internal/http"
	"github.com/senpy/sen-dashboard/internal/observability/notify/pagerduty"
	"github.com/senpy/sen-dashboard/internal/observability/notify/slack"
	"github.com/senpy/sen-dashboard/internal/observability/statsd"
	"github.com/senpy/sen-dashboard/internal/ports"
	"github.com/senpy/sen-dashboard/internal/service"
	"github.com/senpy/sen-dashboard/internal/service/reportnotifier"
)

// ServiceContainer holds the wired application services.
type ServiceContainer struct {
	Auth      *service.AuthService
	Guard     *service.RouteGuard
	Reports   *service.ReportService
	Dashboard *service.DashboardService
	Sessions  ports.SessionStore
	Health    httpx.HealthCheck
	// Reaper expires idle sessions for stores without native TTLs and drops
	// report logs of sessions that expired in stores with them.
	Reaper *service.SessionReaper
}

// ObservabilityContainer carries the metrics sink and what must be closed
// with it.
type ObservabilityContainer struct {
	Metrics statsd.Sink
	closer  io.Closer
}

// Close flushes and releases the metrics client.
func (o ObservabilityContainer) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// ServiceDeps are the collaborators NewServices wires together.
type ServiceDeps struct {
	Config        *config.AppConfig
	Gateway       ports.CredentialGateway
	Sessions      ports.SessionStore
	Datasets      ports.DatasetSource
	Redis         redis.UniversalClient
	Observability ObservabilityContainer
	Logger        *slog.Logger
	Now           func() time.Time
}

func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	if !cfg.Metrics.IsEnabled() {
		return ObservabilityContainer{Metrics: statsd.Discard{}}
	}
	sink, closer, err := statsd.Open(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Warn("statsd unavailable; metrics disabled", "error", err, "address", cfg.Metrics.StatsdAddress)
		return ObservabilityContainer{Metrics: statsd.Discard{}}
	}
	logger.Info("statsd metrics enabled", "address", cfg.Metrics.StatsdAddress, "prefix", cfg.Metrics.Prefix)
	return ObservabilityContainer{Metrics: sink, closer: closer}
}

//nolint:ireturn // the dataset source is either embedded or file-backed.
func buildDatasets(cfg *config.AppConfig) (ports.DatasetSource, error) {
	if cfg.DatasetsFile == "" {
		return fixtures.NewEmbedded(), nil
	}
	src, err := fixtures.NewFromFile(cfg.DatasetsFile)
	if err != nil {
		return nil, fmt.Errorf("load datasets file: %w", err)
	}
	return src, nil
}

// NewServices wires the domain services over the given adapters.
func NewServices(deps *ServiceDeps) ServiceContainer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authMode := string(config.AuthModeREST)
	if deps.Config != nil {
		authMode = string(deps.Config.Auth.Mode)
	}
	metrics := deps.Observability.Metrics

	reportOpts := service.ReportServiceOptions{
		Metrics: metrics,
		Logger:  logger,
		Now:     deps.Now,
	}
	if deps.Config != nil {
		notifier := buildReportNotifier(logger, deps.Config.Observability.Notifications, deps.Config.HTTP.BaseURL)
		if notifier.Enabled() {
			reportOpts.Notifier = notifier
		}
	}
	reports := service.NewReportService(reportOpts)

	var reaper *service.SessionReaper
	if sweep := reaperStore(deps.Sessions, reports); sweep != nil && deps.Config != nil {
		r, err := service.NewSessionReaper(service.SessionReaperOptions{
			Store:    sweep,
			IdleTTL:  deps.Config.Session.IdleTTL,
			Interval: deps.Config.Session.ReapInterval,
			Cleaners: []service.SessionCleaner{reports},
			Logger:   logger,
			Metrics:  metrics,
			Now:      deps.Now,
		})
		if err != nil {
			logger.Warn("session reaper disabled", "error", err)
		} else {
			reaper = r
		}
	}

	return ServiceContainer{
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Gateway:  deps.Gateway,
			Sessions: deps.Sessions,
			Config: service.AuthServiceConfig{
				GatewayName: authMode,
				Metrics:     metrics,
				Logger:      logger,
				Cleaners:    []service.SessionCleaner{reports},
				Now:         deps.Now,
			},
		}),
		Guard: service.NewRouteGuard(service.RouteGuardOptions{
			Sessions: deps.Sessions,
			Policy:   guard.NewPolicy(httpx.ProtectedRoutes()...),
			Config:   service.RouteGuardConfig{Metrics: metrics, Logger: logger},
		}),
		Reports: reports,
		Dashboard: service.NewDashboardService(service.DashboardServiceOptions{
			Data:    deps.Datasets,
			Reports: reports,
			Now:     deps.Now,
		}),
		Sessions: deps.Sessions,
		Health:   redisHealth(deps.Redis),
		Reaper:   reaper,
	}
}

// reaperStore picks what the session reaper sweeps: the store itself when it
// cannot expire sessions, or the report logs of sessions a TTL-based store has
// already dropped.
//
//nolint:ireturn // the sweep target depends on the session backend.
func reaperStore(sessions ports.SessionStore, reports *service.ReportService) service.IdleSessionStore {
	switch s := sessions.(type) {
	case service.IdleSessionStore:
		return s
	case service.SessionPresence:
		return service.OrphanedReports{Reports: reports, Sessions: s}
	default:
		return nil
	}
}

func buildReportNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig, baseURL string) *reportnotifier.Service {
	baseLogger := logger.With("component", "report_notifier")
	opts := reportnotifier.Options{
		Logger:      baseLogger,
		MinSeverity: emergency.Severity(cfg.MinSeverity),
		ReportsURL:  reportsURL(baseURL),
	}
	if !cfg.Enabled {
		return reportnotifier.NewService(opts)
	}

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			opts.Sinks = append(opts.Sinks, reportnotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			opts.Sinks = append(opts.Sinks, reportnotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return reportnotifier.NewService(opts)
}

// reportsURL is the absolute admin report listing, or "" without a base URL.
func reportsURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}
	link, err := url.JoinPath(baseURL, httpx.PathAdminReports)
	if err != nil {
		return ""
	}
	return link
}

// redisHealth pings Redis when it backs the sessions; nil means always healthy.
func redisHealth(client redis.UniversalClient) httpx.HealthCheck {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// Run loads the adapters named by cfg, serves HTTP until ctx is done, and
// then shuts everything down.
func Run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	var rdb redis.UniversalClient
	if cfg.UsesRedis() {
		client, err := ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		rdb = client
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("redis close failed", "error", err)
			}
		}()
	}

	sessions, err := BuildSessionStore(cfg.Session, rdb, logger)
	if err != nil {
		return err
	}
	gateway, err := BuildGateway(ctx, cfg.Auth, logger)
	if err != nil {
		return err
	}
	datasets, err := buildDatasets(cfg)
	if err != nil {
		return err
	}

	obs := buildObservability(logger, cfg.Observability)
	defer func() {
		if err := obs.Close(); err != nil {
			logger.Warn("metrics close failed", "error", err)
		}
	}()

	services := NewServices(&ServiceDeps{
		Config:        cfg,
		Gateway:       gateway,
		Sessions:      sessions,
		Datasets:      datasets,
		Redis:         rdb,
		Observability: obs,
		Logger:        logger,
	})

	if services.Reaper == nil {
		return ServeHTTP(ctx, &HTTPServerConfig{Config: cfg, Services: services, Logger: logger})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ServeHTTP(gctx, &HTTPServerConfig{Config: cfg, Services: services, Logger: logger})
	})
	g.Go(func() error {
		return services.Reaper.Run(gctx)
	})
	return g.Wait()
}
