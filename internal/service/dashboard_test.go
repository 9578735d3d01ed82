package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/senpy/sen-dashboard/internal/adapters/fixtures"
	"github.com/senpy/sen-dashboard/internal/domain/emergency"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/mocks"
	"github.com/senpy/sen-dashboard/internal/testutil"
)

func newDashboardFixture(t *testing.T) (*DashboardService, *ReportService, time.Time) {
	t.Helper()
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	reports := NewReportService(ReportServiceOptions{Now: steppingClock(now)})
	dash := NewDashboardService(DashboardServiceOptions{
		Data:    fixtures.NewEmbedded(),
		Reports: reports,
		Now:     testutil.FixedTimeFunc(now),
	})
	return dash, reports, now
}

func cardValue(t *testing.T, cards []emergency.StatCard, id string) int {
	t.Helper()
	for _, c := range cards {
		if c.ID == id {
			return c.Value
		}
	}
	t.Fatalf("card %q not found", id)
	return 0
}

func TestDashboardService_Overview(t *testing.T) {
	dash, reports, _ := newDashboardFixture(t)
	ctx := context.Background()

	ov, err := dash.Overview(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, ov.Cards, 4)
	assert.Equal(t, 2847, cardValue(t, ov.Cards, "displaced"))
	assert.Equal(t, 23, cardValue(t, ov.Cards, "fires"))
	assert.Equal(t, 15432, cardValue(t, ov.Cards, "hectares"))
	assert.Equal(t, 8950, cardValue(t, ov.Cards, "food"))
	assert.Empty(t, ov.FeedReports)
	assert.Len(t, ov.RecentEvents, 3)
	assert.Equal(t, 12, ov.NewEvents24h)
	assert.Equal(t, 30860, ov.TotalAffected)

	for range 2 {
		_, err = reports.Create(ctx, "sid", testutil.NewReportRequest().Build())
		require.NoError(t, err)
	}
	latest, err := reports.Create(ctx, "sid", testutil.NewReportRequest().WithType(emergency.ReportFoodNeed).Build())
	require.NoError(t, err)

	ov, err = dash.Overview(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 25, cardValue(t, ov.Cards, "fires"))
	assert.Len(t, ov.Reports, 3)
	require.Len(t, ov.FeedReports, 2)
	assert.Equal(t, latest.ID, ov.FeedReports[0].ID)
	assert.Equal(t, 15, ov.NewEvents24h)
	assert.Equal(t, 12, ov.RecentBadge)

	// Other sessions do not see these reports.
	other, err := dash.Overview(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 23, cardValue(t, other.Cards, "fires"))
}

func TestDashboardService_Map_WithOrigin(t *testing.T) {
	dash, _, now := newDashboardFixture(t)

	origin := emergency.DefaultCenter
	view, err := dash.Map(context.Background(), MapQuery{Origin: &origin})
	require.NoError(t, err)
	assert.True(t, view.Located)
	assert.Equal(t, origin, view.Center)
	assert.Equal(t, now, view.Now)

	var ids []string
	for i, e := range view.Events {
		ids = append(ids, e.ID)
		if i > 0 {
			assert.GreaterOrEqual(t, e.DistanceKm, view.Events[i-1].DistanceKm)
		}
	}
	assert.Equal(t, []string{"2", "4", "3", "1", "5"}, ids)
	assert.Less(t, view.Events[0].DistanceKm, 10.0)
}

func TestDashboardService_Map_WithoutOrigin(t *testing.T) {
	dash, _, _ := newDashboardFixture(t)

	tests := []struct {
		name string
		q    MapQuery
		msg  string
	}{
		{"denied", MapQuery{GeoError: "denied"}, "Permisos de ubicación denegados"},
		{"unsupported", MapQuery{GeoError: "unsupported"}, "La geolocalización no está soportada en este navegador"},
		{"invalid point", MapQuery{Origin: &emergency.Point{Lat: 200, Lon: 0}}, "Error al obtener la ubicación"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := dash.Map(context.Background(), tt.q)
			require.Error(t, err)
			assert.True(t, apperrors.IsGeolocationUnavailable(err))
			assert.Equal(t, tt.msg, apperrors.UserMessage(err, ""))

			assert.False(t, view.Located)
			assert.Equal(t, emergency.DefaultCenter, view.Center)
			require.Len(t, view.Events, 5)
			assert.Equal(t, "1", view.Events[0].ID)
			assert.Zero(t, view.Events[0].DistanceKm)
		})
	}
}

func TestDashboardService_Details(t *testing.T) {
	dash, _, _ := newDashboardFixture(t)
	ctx := context.Background()

	v, err := dash.Details(ctx, SectionDisplaced)
	require.NoError(t, err)
	assert.True(t, v.Available)
	assert.Equal(t, "Personas Desplazadas", v.Title)
	assert.Equal(t, emergency.DisplacedSummary{Families: 169, People: 652, Departments: 4, Shelters: 4}, v.DisplacedSummary)

	v, err = dash.Details(ctx, SectionFires)
	require.NoError(t, err)
	assert.Len(t, v.Fires, 3)
	assert.Equal(t, 47, v.FireHistory.Total)

	v, err = dash.Details(ctx, SectionFood)
	require.NoError(t, err)
	assert.Equal(t, 5790, v.FoodKilos)
	assert.Equal(t, 341, v.FoodFamilies)

	v, err = dash.Details(ctx, SectionPoverty)
	require.NoError(t, err)
	assert.Equal(t, 6700, v.PovertyVulnerable)

	v, err = dash.Details(ctx, SectionHectares)
	require.NoError(t, err)
	assert.False(t, v.Available)
	assert.Equal(t, "Hectáreas Afectadas", v.Title)

	v, err = dash.Details(ctx, "bogus")
	require.NoError(t, err)
	assert.False(t, v.Available)
	assert.Equal(t, "Detalles", v.Title)
}

func TestDashboardService_LoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	data := mocks.NewMockDatasetSource(ctrl)
	data.EXPECT().Load(gomock.Any()).Return(emergency.Datasets{}, errors.New("bad yaml")).Times(3)
	dash := NewDashboardService(DashboardServiceOptions{Data: data, Reports: NewReportService(ReportServiceOptions{})})
	ctx := context.Background()

	_, err := dash.Overview(ctx, "sid")
	require.ErrorContains(t, err, "load datasets")
	_, err = dash.Map(ctx, MapQuery{})
	require.ErrorContains(t, err, "load datasets")
	_, err = dash.Details(ctx, SectionFires)
	require.ErrorContains(t, err, "load datasets")
}

func TestNewDashboardService_RequiresDependencies(t *testing.T) {
	assert.Panics(t, func() { NewDashboardService(DashboardServiceOptions{Reports: NewReportService(ReportServiceOptions{})}) })
	assert.Panics(t, func() { NewDashboardService(DashboardServiceOptions{Data: fixtures.NewEmbedded()}) })
}
