package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// ReportPayload captures the data emitted when a citizen files a severe report.
type ReportPayload struct {
	ReportID  string
	DisplayID string
	Type      string
	TypeLabel string
	Title     string
	// Severity is the sink-level severity (critical, warning, info).
	Severity       string
	SeverityLabel  string
	Description    string
	Address        string
	Lat            *float64
	Lng            *float64
	AffectedPeople *int
	ReporterName   string
	ReporterPhone  string
	OccurredAt     time.Time
	// ReportsURL links to the administrator report listing, when known.
	ReportsURL string
}

// Sink describes a destination capable of consuming report notifications.
type Sink interface {
	SendReport(ctx context.Context, payload ReportPayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload ReportPayload) error

// SendReport implements the Sink interface.
func (f SinkFunc) SendReport(ctx context.Context, payload ReportPayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
