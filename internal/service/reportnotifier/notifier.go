// Package reportnotifier announces severe citizen reports to on-call sinks.
package reportnotifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/senpy/sen-dashboard/internal/domain/emergency"
	"github.com/senpy/sen-dashboard/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the report notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// MinSeverity is the lowest severity announced. Defaults to high.
	MinSeverity emergency.Severity
	// ReportsURL links notifications to the administrator report listing.
	ReportsURL string
}

// Service dispatches report notifications to all registered sinks.
type Service struct {
	logger     *slog.Logger
	sinks      []SinkRegistration
	minRank    int
	reportsURL string
}

// NewService constructs a report notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "report_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{Name: name, Sink: entry.Sink})
	}

	minRank := severityRank(opts.MinSeverity)
	if minRank == 0 {
		minRank = severityRank(emergency.SeverityHigh)
	}

	return &Service{
		logger:     logger,
		sinks:      sinks,
		minRank:    minRank,
		reportsURL: opts.ReportsURL,
	}
}

// NotifyReport fans the report out to all sinks when its severity reaches
// the configured threshold. It blocks until every sink has answered.
func (s *Service) NotifyReport(ctx context.Context, report emergency.CitizenReport) {
	if len(s.sinks) == 0 {
		return
	}
	if severityRank(report.Severity) < s.minRank {
		s.logger.DebugContext(ctx, "report below notification threshold",
			"report_id", report.ID,
			"severity", report.Severity,
		)
		return
	}

	payload := s.payloadFor(report)
	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendReport(ctx, payload); err != nil {
				s.logger.Error("report notifier delivery error",
					"sink", entry.Name,
					"report_id", report.ID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}

func (s *Service) payloadFor(r emergency.CitizenReport) notify.ReportPayload {
	return notify.ReportPayload{
		ReportID:       r.ID,
		DisplayID:      r.DisplayID(),
		Type:           string(r.Type),
		TypeLabel:      r.Type.Label(),
		Title:          r.Title,
		Severity:       sinkSeverity(r.Severity),
		SeverityLabel:  r.Severity.Label(),
		Description:    r.Description,
		Address:        r.Location.Address,
		Lat:            r.Location.Lat,
		Lng:            r.Location.Lng,
		AffectedPeople: r.AffectedPeople,
		ReporterName:   r.Reporter.Name,
		ReporterPhone:  r.Reporter.Phone,
		OccurredAt:     r.Timestamp,
		ReportsURL:     s.reportsURL,
	}
}

func severityRank(s emergency.Severity) int {
	switch s {
	case emergency.SeverityLow:
		return 1
	case emergency.SeverityMedium:
		return 2
	case emergency.SeverityHigh:
		return 3
	default:
		return 0
	}
}

func sinkSeverity(s emergency.Severity) string {
	switch s {
	case emergency.SeverityHigh:
		return notify.SeverityCritical
	case emergency.SeverityMedium:
		return notify.SeverityWarning
	default:
		return notify.SeverityInfo
	}
}
