package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/senpy/sen-dashboard/internal/domain/emergency"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/observability/metrics"
	"github.com/senpy/sen-dashboard/internal/observability/statsd"
	"github.com/senpy/sen-dashboard/internal/validation"
)

// MaxSessionReports is how many reports a session keeps, newest first.
const MaxSessionReports = 5

// ReportFormMessage accompanies a rejected report form.
const ReportFormMessage = "Revise los campos marcados"

// ReportServiceOptions groups dependencies for ReportService.
type ReportServiceOptions struct {
	Metrics statsd.Sink
	Logger  *slog.Logger
	Now     func() time.Time
	// Notifier, when set, is told about every created report off the
	// request path.
	Notifier ReportNotifier
}

// ReportNotifier announces created reports to on-call channels.
type ReportNotifier interface {
	NotifyReport(ctx context.Context, report emergency.CitizenReport)
}

// ReportService validates citizen reports and keeps the newest ones of each
// session in memory. Only the notifier sees them outside the process.
type ReportService struct {
	validator *validation.Validator
	metrics   statsd.Sink
	logger    *slog.Logger
	now       func() time.Time
	notifier  ReportNotifier

	mu      sync.Mutex
	reports map[string][]emergency.CitizenReport
}

var _ SessionCleaner = (*ReportService)(nil)

// NewReportService constructs a ReportService.
func NewReportService(opts ReportServiceOptions) *ReportService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ReportService{
		validator: validation.New(),
		metrics:   opts.Metrics,
		logger:    logger.With("component", "reports"),
		now:       now,
		notifier:  opts.Notifier,
		reports:   make(map[string][]emergency.CitizenReport),
	}
}

// ValidateDetails checks the first form step: type, title and description.
func (s *ReportService) ValidateDetails(details emergency.ReportDetails) error {
	normalizeDetails(&details)
	if errs := s.validator.Struct(details); errs != nil {
		return apperrors.Wrap(errs, apperrors.ErrCodeValidation, ReportFormMessage)
	}
	return nil
}

// Create validates a complete submission and records it for sessionID.
func (s *ReportService) Create(ctx context.Context, sessionID string, req emergency.CreateReportRequest) (emergency.CitizenReport, error) {
	normalizeRequest(&req)
	if errs := s.validator.Struct(req); errs != nil {
		return emergency.CitizenReport{}, apperrors.Wrap(errs, apperrors.ErrCodeValidation, ReportFormMessage)
	}

	now := s.now()
	report := emergency.CitizenReport{
		ID:          emergency.ReportID(now),
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		Location: emergency.Location{
			Address: req.Address,
			Lat:     req.Lat,
			Lng:     req.Lng,
		},
		Reporter: emergency.Reporter{
			Name:  req.ReporterName,
			Phone: req.ReporterPhone,
			Email: req.ReporterEmail,
		},
		Timestamp:      now,
		Status:         emergency.ReportPending,
		AffectedPeople: req.AffectedPeople,
	}

	s.mu.Lock()
	prev := s.reports[sessionID]
	next := make([]emergency.CitizenReport, 0, MaxSessionReports)
	next = append(next, report)
	for _, r := range prev {
		if len(next) == MaxSessionReports {
			break
		}
		next = append(next, r)
	}
	s.reports[sessionID] = next
	s.mu.Unlock()

	metrics.EmitReportCreated(s.metrics, string(report.Type))
	s.logger.InfoContext(ctx, "citizen report created", "report_id", report.ID, "type", report.Type, "severity", report.Severity)
	if s.notifier != nil {
		go s.notifier.NotifyReport(context.WithoutCancel(ctx), report)
	}
	return report, nil
}

// Recent returns the session's reports, newest first.
func (s *ReportService) Recent(_ context.Context, sessionID string) []emergency.CitizenReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emergency.CitizenReport(nil), s.reports[sessionID]...)
}

// All returns every session's reports, newest first, for administrators.
func (s *ReportService) All(_ context.Context) []emergency.CitizenReport {
	s.mu.Lock()
	var out []emergency.CitizenReport
	for _, rs := range s.reports {
		out = append(out, rs...)
	}
	s.mu.Unlock()
	sortNewestFirst(out)
	return out
}

// SessionIDs lists the sessions currently holding reports.
func (s *ReportService) SessionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.reports))
	for id := range s.reports {
		ids = append(ids, id)
	}
	return ids
}

// DropSession implements SessionCleaner.
func (s *ReportService) DropSession(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, sessionID)
}

func normalizeDetails(d *emergency.ReportDetails) {
	d.Type = emergency.ReportType(strings.TrimSpace(string(d.Type)))
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if sev, ok := emergency.ParseSeverity(string(d.Severity)); ok {
		d.Severity = sev
	}
}

func normalizeRequest(r *emergency.CreateReportRequest) {
	normalizeDetails(&r.ReportDetails)
	r.Address = strings.TrimSpace(r.Address)
	r.ReporterName = strings.TrimSpace(r.ReporterName)
	r.ReporterPhone = strings.TrimSpace(r.ReporterPhone)
	r.ReporterEmail = strings.TrimSpace(r.ReporterEmail)
}

func sortNewestFirst(rs []emergency.CitizenReport) {
	slices.SortStableFunc(rs, func(a, b emergency.CitizenReport) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
