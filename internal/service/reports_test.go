package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/senpy/sen-dashboard/internal/domain/emergency"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/observability/statsd"
	"github.com/senpy/sen-dashboard/internal/testutil"
	"github.com/senpy/sen-dashboard/internal/validation"
)

// steppingClock returns start, start+1s, start+2s, ... on successive calls.
func steppingClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * time.Second)
		n++
		return t
	}
}

func TestReportService_Create(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	rec := statsd.NewRecorder()
	svc := NewReportService(ReportServiceOptions{Metrics: rec, Now: testutil.FixedTimeFunc(now)})

	req := testutil.NewReportRequest().WithTitle("  Humo en el cerro  ").WithCoordinates(-22.3, -60.1).Build()
	req.AffectedPeople = testutil.IntPtr(12)
	got, err := svc.Create(context.Background(), "sid", req)
	require.NoError(t, err)

	assert.Equal(t, emergency.ReportID(now), got.ID)
	assert.Equal(t, "Humo en el cerro", got.Title)
	assert.Equal(t, emergency.ReportPending, got.Status)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, "Juan Pérez", got.Reporter.Name)
	require.NotNil(t, got.Location.Lat)
	assert.InDelta(t, -22.3, *got.Location.Lat, 1e-9)
	assert.Equal(t, 12, *got.AffectedPeople)

	assert.Equal(t, []emergency.CitizenReport{got}, svc.Recent(context.Background(), "sid"))
	assert.Equal(t, int64(1), rec.CountOf("reports.created"))
}

func TestReportService_Create_DefaultsSeverity(t *testing.T) {
	svc := NewReportService(ReportServiceOptions{})
	req := testutil.NewReportRequest().Build()
	req.Severity = ""

	got, err := svc.Create(context.Background(), "sid", req)
	require.NoError(t, err)
	assert.Equal(t, emergency.SeverityMedium, got.Severity)
}

func TestReportService_Create_Validation(t *testing.T) {
	svc := NewReportService(ReportServiceOptions{})
	ctx := context.Background()

	tests := []struct {
		name   string
		req    emergency.CreateReportRequest
		fields []string
	}{
		{
			name:   "missing reporter",
			req:    testutil.NewReportRequest().WithoutReporter().Build(),
			fields: []string{"reporter_name", "reporter_phone"},
		},
		{
			name:   "blank title",
			req:    testutil.NewReportRequest().WithTitle("   ").Build(),
			fields: []string{"title"},
		},
		{
			name:   "unknown type",
			req:    testutil.NewReportRequest().WithType("flood").Build(),
			fields: []string{"type"},
		},
		{
			name:   "latitude out of range",
			req:    testutil.NewReportRequest().WithCoordinates(123, -57).Build(),
			fields: []string{"lat"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "sid", tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, ReportFormMessage, apperrors.UserMessage(err, ""))

			var fe validation.FieldErrors
			require.True(t, errors.As(err, &fe))
			for _, f := range tt.fields {
				assert.Contains(t, fe, f)
			}
			assert.Len(t, fe, len(tt.fields))
		})
	}
	assert.Empty(t, svc.Recent(ctx, "sid"))
}

func TestReportService_ValidateDetails(t *testing.T) {
	svc := NewReportService(ReportServiceOptions{})

	err := svc.ValidateDetails(emergency.ReportDetails{Type: emergency.ReportOther, Title: "Puente caído", Description: "Sin paso"})
	require.NoError(t, err)

	err = svc.ValidateDetails(emergency.ReportDetails{Title: "Sin tipo"})
	var fe validation.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Este campo es obligatorio.", fe["type"])
	assert.Equal(t, "Este campo es obligatorio.", fe["description"])
	assert.NotContains(t, fe, "title")
}

func TestReportService_KeepsNewestFive(t *testing.T) {
	start := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := NewReportService(ReportServiceOptions{Now: steppingClock(start)})
	ctx := context.Background()

	var ids []string
	for range 7 {
		r, err := svc.Create(ctx, "sid", testutil.NewReportRequest().Build())
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	recent := svc.Recent(ctx, "sid")
	require.Len(t, recent, MaxSessionReports)
	for i, r := range recent {
		assert.Equal(t, ids[len(ids)-1-i], r.ID)
	}

	// Recent hands out a copy.
	recent[0].Title = "changed"
	assert.NotEqual(t, "changed", svc.Recent(ctx, "sid")[0].Title)
}

func TestReportService_AllAndDropSession(t *testing.T) {
	start := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	svc := NewReportService(ReportServiceOptions{Now: steppingClock(start)})
	ctx := context.Background()

	a, err := svc.Create(ctx, "a", testutil.NewReportRequest().Build())
	require.NoError(t, err)
	b, err := svc.Create(ctx, "b", testutil.NewReportRequest().WithType(emergency.ReportFoodNeed).Build())
	require.NoError(t, err)

	all := svc.All(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)
	assert.Equal(t, a.ID, all[1].ID)

	svc.DropSession(ctx, "b")
	assert.Empty(t, svc.Recent(ctx, "b"))
	assert.Len(t, svc.All(ctx), 1)
}

type chanNotifier chan emergency.CitizenReport

func (c chanNotifier) NotifyReport(_ context.Context, r emergency.CitizenReport) { c <- r }

func TestReportService_Create_NotifiesAfterValidation(t *testing.T) {
	notified := make(chanNotifier, 1)
	svc := NewReportService(ReportServiceOptions{Notifier: notified})

	bad := testutil.NewReportRequest().WithTitle(" ").Build()
	_, err := svc.Create(context.Background(), "sid", bad)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	got, err := svc.Create(ctx, "sid", testutil.NewReportRequest().Build())
	require.NoError(t, err)
	cancel()

	select {
	case r := <-notified:
		assert.Equal(t, got.ID, r.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notifier not called")
	}
	select {
	case r := <-notified:
		t.Fatalf("unexpected second notification %s", r.ID)
	default:
	}
}
