package httpx

import (
	"context"
	"html"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	"github.com/senpy/sen-dashboard/internal/domain/emergency"
	"github.com/senpy/sen-dashboard/internal/domain/nav"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/http/ui/viewmodel"
	"github.com/senpy/sen-dashboard/internal/service"
)

const (
	appTitle          = "Secretaría De Emergencia Nacional"
	errMsgUnexpected  = "Ocurrió un error inesperado. Intente nuevamente."
	errMsgFixFields   = service.ReportFormMessage
	authErrorHeadline = "Error de Autenticación"
)

// AuthServiceInterface is the login surface used by the UI.
type AuthServiceInterface interface {
	Login(ctx context.Context, sessionID string, creds domainauth.Credentials) (service.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentSession(ctx context.Context, sessionID string) (domainauth.Session, error)
}

// GuardService decides access for request paths and follows session changes.
type GuardService interface {
	Evaluate(ctx context.Context, sessionID, path string) service.GuardResult
	Track(ctx context.Context, sessionID string) (*service.GuardTracker, error)
}

// ReportsService is a minimal interface for the report form and admin views.
type ReportsService interface {
	ValidateDetails(details emergency.ReportDetails) error
	Create(ctx context.Context, sessionID string, req emergency.CreateReportRequest) (emergency.CitizenReport, error)
	Recent(ctx context.Context, sessionID string) []emergency.CitizenReport
	All(ctx context.Context) []emergency.CitizenReport
}

// DashboardViews builds the dashboard, map and details view models.
type DashboardViews interface {
	Overview(ctx context.Context, sessionID string) (service.Overview, error)
	Map(ctx context.Context, q service.MapQuery) (service.MapView, error)
	Details(ctx context.Context, section string) (service.DetailsView, error)
}

// Compile-time interface assertions to ensure concrete services satisfy their UI interfaces.
var (
	_ AuthServiceInterface = (*service.AuthService)(nil)
	_ GuardService         = (*service.RouteGuard)(nil)
	_ ReportsService       = (*service.ReportService)(nil)
	_ DashboardViews       = (*service.DashboardService)(nil)
)

// UIHandlers serves browser-facing routes.
type UIHandlers struct {
	T         *TemplateRenderer
	Auth      AuthServiceInterface
	Guard     GuardService
	Reports   ReportsService
	Dashboard DashboardViews
	// SessionCookie describes the cookie re-issued when login rotates the ID.
	SessionCookie SessionCookieConfig
	IsDev         bool // Development mode flag for enhanced error reporting
	Logger    *slog.Logger
}

// logger returns the configured logger or falls back to slog.Default().
func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// triggerToast sends a standardized HX-Trigger payload for toast notifications.
func triggerToast(w http.ResponseWriter, message, toastType string) {
	if w == nil || strings.TrimSpace(message) == "" {
		return
	}
	HTMX(w).Trigger("showToast", map[string]any{
		"message": message,
		"type":    strings.TrimSpace(toastType),
	})
}

// PageMeta contains metadata for page rendering.
type PageMeta struct {
	Title       string
	PageTitle   string
	CurrentPage string
}

// buildLayout constructs shared layout metadata from the request/session context.
func buildLayout(r *http.Request, meta PageMeta) viewmodel.Layout {
	layout := viewmodel.Layout{
		Title:       meta.Title,
		PageTitle:   meta.PageTitle,
		CurrentPage: meta.CurrentPage,
		CurrentPath: r.URL.Path,
		CSRFToken:   GetCSRFToken(r),
	}
	if layout.Title == "" {
		layout.Title = appTitle
	}

	if session, ok := GetSessionFromContext(r.Context()); ok {
		layout.IsAuthenticated = true
		layout.IsAdmin = session.IsAdmin()
		layout.User = &viewmodel.User{
			Name:  session.User.Name,
			Email: session.User.Email,
			Admin: session.IsAdmin(),
		}
		layout.Menu = nav.ComputeMenu(session)
	}

	return layout
}

// basePageData constructs the common page data map with user context.
func basePageData(r *http.Request, meta PageMeta) map[string]any {
	layout := buildLayout(r, meta)
	data := map[string]any{
		"Layout":          layout,
		"AppTitle":        appTitle,
		"Title":           layout.Title,
		"PageTitle":       layout.PageTitle,
		"CurrentPage":     layout.CurrentPage,
		"CurrentPath":     layout.CurrentPath,
		"IsAuthenticated": layout.IsAuthenticated,
		"IsAdmin":         layout.IsAdmin,
		"Subtitle":        layout.Subtitle(),
		"Menu":            layout.Menu,
	}

	if layout.CSRFToken != "" {
		data["CSRFToken"] = layout.CSRFToken
	}
	if layout.User != nil {
		data["User"] = layout.User
	}

	return data
}

// PageSpec defines metadata and an optional fetch for page-specific data.
type PageSpec struct {
	Meta  PageMeta
	Fetch func(ctx context.Context, data map[string]any) error
}

// Page builds base data, optionally fetches content data, and renders.
func (h *UIHandlers) Page(w http.ResponseWriter, r *http.Request, spec PageSpec) {
	data := basePageData(r, spec.Meta)
	if spec.Fetch != nil {
		if err := spec.Fetch(r.Context(), data); err != nil {
			h.logger().ErrorContext(r.Context(), "page data fetch failed",
				"error", err,
				"page", spec.Meta.CurrentPage,
			)
			markPageError(data, err)
		}
	}
	h.renderDashboardPage(w, r, data)
}

// renderDashboardPage renders a page inside the shell with HTMX partial support.
func (h *UIHandlers) renderDashboardPage(w http.ResponseWriter, r *http.Request, data map[string]any) {
	if !WantsPartial(r) {
		if err := h.T.RenderFull(w, r, data); err != nil {
			h.logAndRenderTemplateError(w, r, err, "full page render")
		}
		return
	}

	// Hint client JS to update nav active state based on current path
	SetHXTrigger(w, "nav:activate", map[string]string{"path": r.URL.Path})

	layout, _ := data["Layout"].(viewmodel.Layout)
	var prefix strings.Builder
	// A <title> lets htmx update document.title on partial swaps.
	prefix.WriteString(`<title>` + html.EscapeString(layout.Title) + `</title>`)
	prefix.WriteString(`<h1 id="header-title" class="header-title" hx-swap-oob="outerHTML">` +
		html.EscapeString(layout.PageTitle) + `</h1>`)
	// #nosec G203 - both values were escaped above.
	data["PartialPrefix"] = template.HTML(prefix.String())

	if err := h.T.RenderPartial(w, r, data); err != nil {
		h.logAndRenderTemplateError(w, r, err, "partial content render")
	}
}

// renderFragment renders a standalone template such as a modal body or form step.
func (h *UIHandlers) renderFragment(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if err := h.T.RenderFragment(w, status, name, data); err != nil {
		h.logAndRenderTemplateError(w, r, err, name)
	}
}

func markPageError(data map[string]any, err error) {
	data["Error"] = true
	if _, ok := data["ErrorMessage"]; ok {
		return
	}
	data["ErrorMessage"] = apperrors.UserMessage(err, errMsgUnexpected)
}

// sessionID returns the browsing-context identifier set by SessionCookie.
func sessionID(r *http.Request) string {
	return GetSessionIDFromContext(r.Context())
}

// logAndRenderTemplateError logs template errors and renders them in dev mode.
func (h *UIHandlers) logAndRenderTemplateError(w http.ResponseWriter, r *http.Request, err error, context string) {
	h.logger().Error("template rendering failed",
		"error", err,
		"context", context,
		"path", r.URL.Path,
		"method", r.Method,
	)

	if h.IsDev {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		errHTML := html.EscapeString(err.Error())
		pathHTML := html.EscapeString(r.URL.Path)
		contextHTML := html.EscapeString(context)
		if _, writeErr := w.Write([]byte(`
			<div class="dev-error">
				<h2>Template Rendering Error</h2>
				<p><strong>Context:</strong> ` + contextHTML + `</p>
				<p><strong>Path:</strong> ` + pathHTML + `</p>
				<pre>` + errHTML + `</pre>
			</div>
		`)); writeErr != nil {
			h.logger().Error("failed to write template error response", "error", writeErr)
		}
		return
	}

	http.Error(w, "internal server error", http.StatusInternalServerError)
}
