package httpx

import (
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/gorilla/websocket"

	sendashboard "github.com/senpy/sen-dashboard"
	"github.com/senpy/sen-dashboard/internal/domain/nav"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth      AuthServiceInterface
	Guard     GuardService
	Reports   ReportsService
	Dashboard DashboardViews
	// Health backs /healthz; nil always reports ok.
	Health HealthCheck

	CookieDomain      string
	SessionCookieName string
	// Compression enables gzip for text responses.
	Compression      bool
	CompressionLevel int
	// TemplateFS overrides the template source, mainly for tests.
	TemplateFS fs.FS
	// Now anchors relative timestamps in templates. Defaults to time.Now.
	Now func() time.Time

	IsDev  bool         // Development mode flag for hot reloading, etc.
	Logger *slog.Logger // Logger for template and HTTP errors (optional)
}

// ProtectedRoutes lists the routes that require a session: every menu entry
// plus the dashboard fragments and the report form. PathDetails ends in "/"
// and so covers exactly one section segment.
func ProtectedRoutes() []string {
	return append(nav.Paths(), PathMap, PathNewReport, PathReportStep, PathReports, PathDetails)
}

// NewRouter creates and configures the HTTP router with its middleware
// chain. It fails when the templates cannot be parsed.
func NewRouter(services RouterServices) (http.Handler, error) {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ui, err := setupUIHandlers(services, logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerUIRoutes(mux, ui, services.Guard)

	mux.Handle("GET "+PathSessionWS, &SessionSocket{Guard: services.Guard, Handlers: ui, Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}})
	mux.HandleFunc("GET "+PathSessionInfo, ui.SessionStatus)
	mux.Handle("GET /healthz", healthHandler(services.Health, logger))
	mux.Handle("HEAD /healthz", healthHandler(services.Health, logger))

	// Static assets at /static
	// Dev mode: serve from disk for hot reloading
	// Prod mode: serve from embedded FS
	mux.Handle("GET /static/", staticWithFallback(services.IsDev, logger))

	var handler http.Handler = mux
	handler = CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain, OnFailure: ui.CSRFFailed, Logger: logger})(handler)
	handler = SessionCookie(sessionCookieConfig(services))(handler)
	if services.Compression {
		handler = Compression(CompressionConfig{Level: services.CompressionLevel, Logger: logger})(handler)
	}
	handler = Logging(logger)(handler)
	return Recover(logger)(handler), nil
}

// setupUIHandlers creates UI handlers with the template renderer.
// In dev mode (services.IsDev=true), templates are loaded from disk for hot reloading.
// In production mode (services.IsDev=false), templates are loaded from embedded FS.
func setupUIHandlers(services RouterServices, logger *slog.Logger) (*UIHandlers, error) {
	templateFS := services.TemplateFS
	if templateFS == nil {
		templateFS = defaultTemplateFS(services.IsDev, logger)
	}

	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS,
		Logger:     logger,
		Now:        services.Now,
	})
	if err != nil {
		return nil, err
	}

	return &UIHandlers{
		T:             tr,
		Auth:          services.Auth,
		Guard:         services.Guard,
		Reports:       services.Reports,
		Dashboard:     services.Dashboard,
		SessionCookie: sessionCookieConfig(services),
		IsDev:         services.IsDev,
		Logger:        logger,
	}, nil
}

func sessionCookieConfig(services RouterServices) SessionCookieConfig {
	return SessionCookieConfig{Name: services.SessionCookieName, Domain: services.CookieDomain}
}

func defaultTemplateFS(isDev bool, logger *slog.Logger) fs.FS {
	if isDev {
		return os.DirFS(TemplatePathFromRoot)
	}
	sub, err := fs.Sub(sendashboard.TemplateFS, TemplatePathFromRoot)
	if err != nil {
		logger.Warn("embedded templates unavailable; falling back to disk", "error", err)
		return os.DirFS(TemplatePathFromRoot)
	}
	return sub
}

// registerUIRoutes wires every page behind the route guard. Logout and the
// session endpoints stay outside it: the guard would bounce an authenticated
// logout to /home.
func registerUIRoutes(mux *http.ServeMux, h *UIHandlers, g GuardService) {
	guarded := RequireAccess(g)
	adminOnly := func(hf http.HandlerFunc) http.Handler {
		return guarded(RequireAdmin(h.Forbidden)(hf))
	}

	// Root and unmatched paths resolve to /home or /login by state, also
	// when a registered path is requested with another method.
	mux.Handle("/", guarded(http.HandlerFunc(h.Unmatched)))

	mux.Handle("GET /login", guarded(http.HandlerFunc(h.LoginPage)))
	mux.Handle("POST /login", guarded(http.HandlerFunc(h.LoginSubmit)))
	mux.HandleFunc("POST "+PathLogout, h.Logout)

	mux.Handle("GET /home", guarded(http.HandlerFunc(h.Home)))
	for _, path := range nav.Paths() {
		entry, _ := nav.Lookup(path)
		switch entry.Section {
		case PageAdminDashboard:
			mux.Handle("GET "+path, adminOnly(h.AdminDashboard))
		case PageAdminReports:
			mux.Handle("GET "+path, adminOnly(h.AdminReports))
		default:
			mux.Handle("GET "+path, guarded(h.Section(entry)))
		}
	}

	mux.Handle("GET "+PathMap, guarded(http.HandlerFunc(h.Map)))
	mux.Handle("GET "+PathNewReport, guarded(http.HandlerFunc(h.NewReport)))
	mux.Handle("POST "+PathReportStep, guarded(http.HandlerFunc(h.ReportStep)))
	mux.Handle("POST "+PathReports, guarded(http.HandlerFunc(h.CreateReport)))
	mux.Handle("GET "+PathDetails+"{section}", guarded(http.HandlerFunc(h.Details)))
}

func staticWithFallback(isDev bool, logger *slog.Logger) http.Handler {
	if isDev {
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))))
	}

	staticSub, err := fs.Sub(sendashboard.StaticFS, "frontend/static")
	if err != nil {
		logger.Warn("failed to create sub-filesystem for static assets", "error", err)
		return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("frontend/static"))))
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
}

// vendorFilePattern matches versioned third-party files that never change.
var vendorFilePattern = regexp.MustCompile(`^/static/vendor/.+-\d+\.\d+\.\d+(?:\.min)?\.(?:js|css)$`)

func staticWithCacheHeaders(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if vendorFilePattern.MatchString(r.URL.Path) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		handler.ServeHTTP(w, r)
	})
}
