package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/senpy/sen-dashboard/internal/domain/emergency"
	"github.com/senpy/sen-dashboard/internal/http/uiutil"
)

// Deps holds optional dependencies for constructing the core template func map.
type Deps struct {
	Template           **template.Template
	ContentTemplateFor func(string) string
	// Now anchors relative timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Funcs returns a template.FuncMap containing helpers that are broadly useful across templates.
func Funcs(deps Deps) template.FuncMap {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	funcs := template.FuncMap{
		"sectionTmpl":   deps.ContentTemplateFor,
		"friendlyTime":  createFriendlyTimeFunc(),
		"timeAgo":       func(t time.Time) string { return uiutil.TimeAgo(t, now()) },
		"eventTime":     func(e emergency.Event) string { return uiutil.TimeAgo(e.Timestamp(now()), now()) },
		"add":           func(a, b int) int { return a + b },
		"sub":           func(a, b int) int { return a - b },
		"contains":      strings.Contains,
		"formatNumber":  formatNumberTemplate,
		"formatKm":      uiutil.FormatKm,
		"formatCoord":   func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) },
		"statusColor":   emergency.StatusColor,
		"severityColor": emergency.SeverityColor,
		"severityClass": severityClass,
		"eventColor":    eventColor,
		"truncateText":  TruncateText,
		"asset":         func(name string) string { return path.Join("/static", name) },
		"deref":         deref,
		"fieldError":    fieldError,
	}

	addRenderFuncs(funcs, deps)
	return funcs
}

func addRenderFuncs(funcs template.FuncMap, deps Deps) {
	funcs["renderSection"] = func(page string, data any) (template.HTML, error) {
		if deps.Template == nil || *deps.Template == nil {
			return "", errors.New("template not initialized")
		}
		var buf bytes.Buffer
		if err := (*deps.Template).ExecuteTemplate(&buf, deps.ContentTemplateFor(page), data); err != nil {
			return "", err
		}
		// #nosec G203 - rendered by our own html/template set; values were escaped during ExecuteTemplate.
		return template.HTML(buf.String()), nil
	}

	funcs["toJSON"] = func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func createFriendlyTimeFunc() func(any) string {
	return func(ts any) string {
		var t0 time.Time
		switch v := ts.(type) {
		case time.Time:
			t0 = v
		case *time.Time:
			if v != nil {
				t0 = *v
			}
		default:
			return ""
		}
		if t0.IsZero() {
			return ""
		}
		return uiutil.FormatFriendlyDateTime(t0)
	}
}

// fieldError looks up the message for field; errs may be nil.
func fieldError(errs any, field string) string {
	if m, ok := errs.(map[string]string); ok {
		return m[field]
	}
	return ""
}

// deref renders optional numeric fields; nil renders as an empty string.
func deref(v any) string {
	switch x := v.(type) {
	case *int:
		if x != nil {
			return strconv.Itoa(*x)
		}
	case *float64:
		if x != nil {
			return strconv.FormatFloat(*x, 'f', -1, 64)
		}
	}
	return ""
}

// formatNumberTemplate formats any integer type with comma separators for thousands.
// Handles negative numbers and values of any size.
func formatNumberTemplate(v any) string {
	var s string
	var neg bool

	switch x := v.(type) {
	case int:
		s, neg = formatInt64(int64(x))
	case int64:
		s, neg = formatInt64(x)
	case int32:
		s, neg = formatInt64(int64(x))
	case uint, uint64, uint32:
		s = formatUint64(x)
	default:
		return fmt.Sprint(v)
	}

	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	return formatWithCommas(s, neg)
}

// formatInt64 converts int64 to string and tracks sign.
func formatInt64(x int64) (string, bool) {
	if x < 0 {
		return strconv.FormatUint(uint64(-x), 10), true
	}
	return strconv.FormatUint(uint64(x), 10), false
}

// formatUint64 converts any unsigned integer to string.
func formatUint64(v any) string {
	switch x := v.(type) {
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	default:
		return "0"
	}
}

// formatWithCommas formats a numeric string with comma separators.
func formatWithCommas(s string, neg bool) string {
	var b strings.Builder
	b.Grow(len(s) + (len(s)-1)/3)

	prefix := len(s) % 3
	if prefix == 0 {
		prefix = 3
	}

	b.WriteString(s[:prefix])
	for i := prefix; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// severityClass maps event and report severities to badge classes.
func severityClass(severity emergency.Severity) string {
	switch severity {
	case emergency.SeverityHigh:
		return "badge-danger"
	case emergency.SeverityMedium:
		return "badge-warning"
	case emergency.SeverityLow:
		return "badge-success"
	default:
		return "badge-light"
	}
}

// eventPalette holds the high, medium and low marker colours of each event type.
var eventPalette = map[emergency.EventType][3]string{
	emergency.EventFire:         {"#dc2626", "#ea580c", "#f59e0b"},
	emergency.EventDisplacement: {"#2563eb", "#3b82f6", "#60a5fa"},
	emergency.EventPoverty:      {"#ca8a04", "#eab308", "#facc15"},
	emergency.EventFood:         {"#16a34a", "#22c55e", "#4ade80"},
}

// eventColor is the marker colour of a map event, shaded by severity.
func eventColor(e emergency.Event) string {
	shades, ok := eventPalette[e.Type]
	if !ok {
		return "#6b7280"
	}
	switch e.Severity {
	case emergency.SeverityHigh:
		return shades[0]
	case emergency.SeverityMedium:
		return shades[1]
	default:
		return shades[2]
	}
}

// TruncateText truncates a string to a maximum number of runes (not bytes).
// Adds an ellipsis (…) when truncated.
func TruncateText(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	return uiutil.TruncateWithEllipsis(s, maxLen)
}
