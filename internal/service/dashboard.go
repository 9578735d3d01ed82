package service

import (
	"context"
	"fmt"
	"time"

	"github.com/senpy/sen-dashboard/internal/domain/emergency"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/ports"
)

// Headline figures of the dashboard cards.
const (
	baseDisplaced = 2847
	baseFires     = 23
	baseHectares  = 15432
	baseFoodKilos = 8950

	// feedReports is how many citizen reports lead the recent events feed.
	feedReports = 2
	// MapEventLimit caps the nearby events list.
	MapEventLimit = 5
)

// reportLister is the slice of ReportService the dashboard reads.
type reportLister interface {
	Recent(ctx context.Context, sessionID string) []emergency.CitizenReport
}

// DashboardServiceOptions groups dependencies for DashboardService.
type DashboardServiceOptions struct {
	Data    ports.DatasetSource
	Reports reportLister
	Now     func() time.Time
}

// DashboardService assembles the view models of the home page, the map and
// the details modal from the static datasets and the session's reports.
type DashboardService struct {
	data    ports.DatasetSource
	reports reportLister
	now     func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(opts DashboardServiceOptions) *DashboardService {
	if opts.Data == nil {
		panic("DatasetSource is required")
	}
	if opts.Reports == nil {
		panic("report lister is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &DashboardService{data: opts.Data, reports: opts.Reports, now: now}
}

// Overview is the home page content.
type Overview struct {
	Cards []emergency.StatCard
	// Reports are the session's reports, newest first.
	Reports []emergency.CitizenReport
	// FeedReports lead the recent events list.
	FeedReports   []emergency.CitizenReport
	RecentEvents  []emergency.RecentEvent
	RecentBadge   int
	NewEvents24h  int
	PovertyStatus []emergency.PovertyStatus
	TotalAffected int
}

// Overview builds the dashboard for sessionID.
func (s *DashboardService) Overview(ctx context.Context, sessionID string) (Overview, error) {
	data, err := s.data.Load(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("load datasets: %w", err)
	}
	reports := s.reports.Recent(ctx, sessionID)

	feed := reports
	if len(feed) > feedReports {
		feed = feed[:feedReports]
	}

	return Overview{
		Cards:         StatCards(reports),
		Reports:       reports,
		FeedReports:   feed,
		RecentEvents:  data.RecentEvents,
		RecentBadge:   data.RecentEventCount,
		NewEvents24h:  data.RecentEventCount + len(reports),
		PovertyStatus: data.PovertyStatus,
		TotalAffected: emergency.TotalAffected(data.PovertyStatus),
	}, nil
}

// StatCards returns the four headline cards. The fire count grows with the
// session's fire reports.
func StatCards(reports []emergency.CitizenReport) []emergency.StatCard {
	fires := baseFires
	for _, r := range reports {
		if r.Type == emergency.ReportFire {
			fires++
		}
	}
	return []emergency.StatCard{
		{ID: "displaced", Title: "Personas Desplazadas", Value: baseDisplaced, Description: "Familias afectadas por eventos", Change: "+127 esta semana", Icon: "users", Color: "text-chart-1"},
		{ID: "fires", Title: "Focos de Incendio", Value: fires, Description: "Focos activos registrados", Change: "5 principales focos", Icon: "flame", Color: "text-chart-2"},
		{ID: "hectares", Title: "Hectáreas Afectadas", Value: baseHectares, Description: "Por incendios forestales", Change: "+2,100 esta semana", Icon: "trending-up", Color: "text-chart-4"},
		{ID: "food", Title: "Asistencia Alimentaria", Value: baseFoodKilos, Description: "Kilos distribuidos por zona", Change: "12 zonas cubiertas", Icon: "package", Color: "text-chart-3"},
	}
}

// MapQuery carries the viewer position, or the reason it is missing.
type MapQuery struct {
	Origin   *emergency.Point
	GeoError string
}

// MapView is the content of the interactive map panel.
type MapView struct {
	Center  emergency.Point
	Located bool
	Events  []emergency.NearbyEvent
	Now     time.Time
}

// Map lists the map events. With a valid origin they are sorted by distance
// and capped; otherwise the view is centred on the default location, the
// events keep their order, and a GeolocationUnavailable error explains why.
// The view is usable in both cases.
func (s *DashboardService) Map(ctx context.Context, q MapQuery) (MapView, error) {
	data, err := s.data.Load(ctx)
	if err != nil {
		return MapView{}, fmt.Errorf("load datasets: %w", err)
	}
	now := s.now()

	if q.Origin != nil && q.Origin.Valid() && q.GeoError == "" {
		return MapView{
			Center:  *q.Origin,
			Located: true,
			Events:  emergency.Nearest(*q.Origin, data.MapEvents, MapEventLimit),
			Now:     now,
		}, nil
	}

	events := make([]emergency.NearbyEvent, len(data.MapEvents))
	for i, e := range data.MapEvents {
		events[i] = emergency.NearbyEvent{Event: e}
	}
	view := MapView{Center: emergency.DefaultCenter, Events: events, Now: now}
	return view, apperrors.GeolocationUnavailable(emergency.GeolocationMessage(q.GeoError))
}

// Details sections.
const (
	SectionDisplaced = "displaced"
	SectionFires     = "fires"
	SectionHectares  = "hectares"
	SectionFood      = "food"
	SectionPoverty   = "poverty"
	SectionMap       = "map"
)

// SectionTitle returns the modal title of section.
func SectionTitle(section string) string {
	switch section {
	case SectionDisplaced:
		return "Personas Desplazadas"
	case SectionFires:
		return "Focos de Incendio"
	case SectionHectares:
		return "Hectáreas Afectadas"
	case SectionFood:
		return "Asistencia Alimentaria"
	case SectionPoverty:
		return "Situación de Pobreza"
	case SectionMap:
		return "Mapa Interactivo"
	default:
		return "Detalles"
	}
}

// DetailsView is the content of the details modal. Exactly one dataset is
// populated for sections that have one; Available is false otherwise.
type DetailsView struct {
	Section   string
	Title     string
	Available bool

	Displaced         []emergency.DisplacedRecord
	DisplacedSummary  emergency.DisplacedSummary
	Fires             []emergency.FireIncident
	FireHistory       emergency.FireHistory
	Food              []emergency.FoodDistribution
	FoodKilos         int
	FoodFamilies      int
	Poverty           []emergency.PovertyRecord
	PovertyVulnerable int
}

// Details builds the modal content for section.
func (s *DashboardService) Details(ctx context.Context, section string) (DetailsView, error) {
	data, err := s.data.Load(ctx)
	if err != nil {
		return DetailsView{}, fmt.Errorf("load datasets: %w", err)
	}

	v := DetailsView{Section: section, Title: SectionTitle(section), Available: true}
	switch section {
	case SectionDisplaced:
		v.Displaced = data.Displaced
		v.DisplacedSummary = emergency.SummarizeDisplaced(data.Displaced)
	case SectionFires:
		v.Fires = data.Fires
		v.FireHistory = data.FireHistory
	case SectionFood:
		v.Food = data.Food
		for _, f := range data.Food {
			v.FoodKilos += f.Kilos
			v.FoodFamilies += f.Families
		}
	case SectionPoverty:
		v.Poverty = data.Poverty
		for _, p := range data.Poverty {
			v.PovertyVulnerable += p.VulnerablePopulation
		}
	default:
		v.Available = false
	}
	return v, nil
}
