package httpx

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/senpy/sen-dashboard/internal/domain/emergency"
	"github.com/senpy/sen-dashboard/internal/domain/nav"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/service"
)

// sectionEvents is the menu section listing recent events instead of a dataset.
const sectionEvents = "events"

// Home renders the dashboard.
// GET /home.
func (h *UIHandlers) Home(w http.ResponseWriter, r *http.Request) {
	h.Page(w, r, PageSpec{
		Meta: PageMeta{Title: "Inicio | " + appTitle, PageTitle: "Panel de Control", CurrentPage: PageHome},
		Fetch: func(ctx context.Context, data map[string]any) error {
			ov, err := h.Dashboard.Overview(ctx, sessionID(r))
			if err != nil {
				return err
			}
			data["Overview"] = ov
			return nil
		},
	})
}

// Section returns the handler of a common menu entry: the entry's details
// panel inside the shell, or the recent events list for the events entry.
func (h *UIHandlers) Section(entry nav.MenuEntry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Page(w, r, PageSpec{
			Meta: PageMeta{Title: entry.Label + " | " + appTitle, PageTitle: entry.Label, CurrentPage: PageSection},
			Fetch: func(ctx context.Context, data map[string]any) error {
				data["Entry"] = entry
				if entry.Section == sectionEvents {
					ov, err := h.Dashboard.Overview(ctx, sessionID(r))
					if err != nil {
						return err
					}
					data["Overview"] = ov
					return nil
				}
				details, err := h.Dashboard.Details(ctx, entry.Section)
				if err != nil {
					return err
				}
				data["Details"] = details
				return nil
			},
		})
	}
}

// reportTypeCount is one row of the admin breakdown by report type.
type reportTypeCount struct {
	Type  emergency.ReportType
	Label string
	Count int
}

// adminSummary aggregates every session's reports for the admin dashboard.
type adminSummary struct {
	Total    int
	Pending  int
	Affected int
	ByType   []reportTypeCount
}

func summarizeReports(reports []emergency.CitizenReport) adminSummary {
	s := adminSummary{Total: len(reports)}
	counts := map[emergency.ReportType]int{}
	for _, r := range reports {
		if r.Status == emergency.ReportPending {
			s.Pending++
		}
		if r.AffectedPeople != nil {
			s.Affected += *r.AffectedPeople
		}
		counts[r.Type]++
	}
	for _, opt := range emergency.ReportTypes {
		s.ByType = append(s.ByType, reportTypeCount{Type: opt.Value, Label: opt.Label, Count: counts[opt.Value]})
	}
	sort.SliceStable(s.ByType, func(i, j int) bool { return s.ByType[i].Count > s.ByType[j].Count })
	return s
}

// AdminDashboard renders the administrator overview.
// GET /admin/dashboard.
func (h *UIHandlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	h.Page(w, r, PageSpec{
		Meta: PageMeta{Title: "Dashboard Admin | " + appTitle, PageTitle: "Dashboard Admin", CurrentPage: PageAdminDashboard},
		Fetch: func(ctx context.Context, data map[string]any) error {
			ov, err := h.Dashboard.Overview(ctx, sessionID(r))
			if err != nil {
				return err
			}
			data["Overview"] = ov
			data["Summary"] = summarizeReports(h.Reports.All(ctx))
			return nil
		},
	})
}

// AdminReports lists every citizen report awaiting validation.
// GET /admin/reportes.
func (h *UIHandlers) AdminReports(w http.ResponseWriter, r *http.Request) {
	h.Page(w, r, PageSpec{
		Meta: PageMeta{Title: "Validar Reportes | " + appTitle, PageTitle: "Validar Reportes", CurrentPage: PageAdminReports},
		Fetch: func(ctx context.Context, data map[string]any) error {
			data["Reports"] = h.Reports.All(ctx)
			return nil
		},
	})
}

// parseMapQuery reads the viewer position. A missing or malformed coordinate
// counts as a generic geolocation failure unless the client sent a reason.
func parseMapQuery(r *http.Request) service.MapQuery {
	q := r.URL.Query()
	out := service.MapQuery{GeoError: strings.TrimSpace(q.Get("geo_error"))}
	latRaw, lonRaw := q.Get("lat"), q.Get("lon")
	if latRaw == "" && lonRaw == "" {
		if out.GeoError == "" {
			out.GeoError = "unknown"
		}
		return out
	}
	lat, errLat := strconv.ParseFloat(latRaw, 64)
	lon, errLon := strconv.ParseFloat(lonRaw, 64)
	if errLat != nil || errLon != nil {
		if out.GeoError == "" {
			out.GeoError = "unknown"
		}
		return out
	}
	out.Origin = &emergency.Point{Lat: lat, Lon: lon}
	return out
}

// Map renders the interactive map panel. Without a usable position the panel
// still renders, centred on the default location, under the geolocation
// message.
// GET /map?lat=&lon=&geo_error=.
func (h *UIHandlers) Map(w http.ResponseWriter, r *http.Request) {
	view, err := h.Dashboard.Map(r.Context(), parseMapQuery(r))
	data := NewTemplateData(r, PageMeta{}).With("Map", view)
	if err != nil {
		if !apperrors.IsGeolocationUnavailable(err) {
			h.renderError(w, r, err)
			return
		}
		data.With("GeoMessage", apperrors.UserMessage(err, emergency.GeolocationMessage("")))
	}
	h.renderFragment(w, r, http.StatusOK, "map-panel", data.Build())
}

// Details renders the details modal of a dashboard section.
// GET /details/{section}.
func (h *UIHandlers) Details(w http.ResponseWriter, r *http.Request) {
	view, err := h.Dashboard.Details(r.Context(), r.PathValue("section"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	data := NewTemplateData(r, PageMeta{}).With("Details", view).Build()
	h.renderFragment(w, r, http.StatusOK, "details-modal", data)
}
