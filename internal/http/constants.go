package httpx

// CurrentPage constants define the page identifiers used in templates and navigation.
// These constants ensure consistency across UI handlers and template mapping.
const (
	PageLogin   = "login"
	PageHome    = "home"
	PageSection = "section"
	PageReport  = "report"

	// Administrative pages.
	PageAdminDashboard = "admin-dashboard"
	PageAdminReports   = "admin-reports"
)

// Template paths used for loading templates in tests and production.
const (
	TemplatePathFromRoot = "frontend/templates"       // From project root
	TemplatePathFromTest = "../../frontend/templates" // From internal/http test files
)

// Request paths served outside the navigation menu.
const (
	PathLogout      = "/logout"
	PathMap         = "/map"
	PathNewReport   = "/reports/new"
	PathReportStep  = "/reports/step"
	PathReports     = "/reports"
	PathDetails     = "/details/"
	PathSessionWS   = "/session/ws"
	PathSessionInfo = "/session/status"

	// PathAdminReports is the administrator report listing, linked from
	// outbound notifications.
	PathAdminReports = "/admin/reportes"
)

// Content templates are defined once and reused to avoid per-call allocations.
//
//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageHome:           "dashboard-content",
	PageSection:        "section-content",
	PageReport:         "report-content",
	PageAdminDashboard: "admin-dashboard-content",
	PageAdminReports:   "admin-reports-content",
}

// ContentTemplateMap returns the mapping from CurrentPage to template name.
// This is the single source of truth for page-to-template mapping.
func ContentTemplateMap() map[string]string { return contentTemplates }

// ContentTemplateFor returns the content template for the given CurrentPage.
// Falls back to dashboard-content for unknown pages.
func ContentTemplateFor(currentPage string) string {
	if name, ok := ContentTemplateMap()[currentPage]; ok {
		return name
	}
	return "dashboard-content"
}
