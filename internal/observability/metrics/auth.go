package metrics

import (
	"time"

	obserrors "github.com/senpy/sen-dashboard/internal/observability/errors"
	"github.com/senpy/sen-dashboard/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultBusy    = "busy"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// LoginMetric captures one login attempt for metric emission.
type LoginMetric struct {
	Gateway  string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitLogin emits auth.login.<result> and, when measured, auth.login.duration.
func EmitLogin(sink statsd.Sink, in LoginMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"gateway": in.Gateway}
	if in.Err != nil && in.Result == ResultFailure {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth.login."+in.Result, 1, tags)

	if in.Duration > 0 {
		sink.Timing("auth.login.duration", in.Duration, CloneTags(tags))
	}
}

// EmitLogout counts a logout.
func EmitLogout(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count("auth.logout", 1, nil)
}

// EmitGuardRedirect counts a redirect issued by the route guard.
func EmitGuardRedirect(sink statsd.Sink, state, target string) {
	if sink == nil {
		return
	}
	sink.Count("guard.redirect", 1, map[string]string{"state": state, "target": target})
}

// EmitReportCreated counts a submitted citizen report.
func EmitReportCreated(sink statsd.Sink, reportType string) {
	if sink == nil {
		return
	}
	sink.Count("reports.created", 1, map[string]string{"type": reportType})
}

// SessionReapMetric captures one idle-session sweep.
type SessionReapMetric struct {
	Expired int
	Elapsed time.Duration
	Err     error
}

// EmitSessionReap emits session_reaper.cleanup tagged by result, the sweep
// duration, and the number of sessions expired.
func EmitSessionReap(sink statsd.Sink, in SessionReapMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Expired == 0:
		result = ResultNoop
	}
	tags := map[string]string{"result": result}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("session_reaper.cleanup", 1, tags)
	if in.Elapsed > 0 {
		sink.Timing("session_reaper.cleanup_duration", in.Elapsed, CloneTags(tags))
	}
	if in.Expired > 0 {
		sink.Count("session_reaper.sessions_expired", int64(in.Expired), nil)
	}
	if in.Err == nil {
		sink.Gauge("session_reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
