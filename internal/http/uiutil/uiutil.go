package uiutil

import (
	"strconv"
	"strings"
	"time"
)

const FriendlyDateTimeLayout = "02/01/2006 15:04"

// TimeAgo describes how long before now t occurred, in Spanish. Minutes are
// always plural; hours and days agree with their count. Future times read as
// zero minutes.
func TimeAgo(t, now time.Time) string {
	mins := int(now.Sub(t) / time.Minute)
	if mins < 0 {
		mins = 0
	}
	switch {
	case mins < 60:
		return "Hace " + strconv.Itoa(mins) + " minutos"
	case mins < 24*60:
		return "Hace " + plural(mins/60, "hora", "horas")
	default:
		return "Hace " + plural(mins/(24*60), "día", "días")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}

// FormatFriendlyDateTime returns a consistent local timestamp representation.
func FormatFriendlyDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(FriendlyDateTimeLayout)
}

// FormatKm renders a distance with one decimal.
func FormatKm(km float64) string {
	return strconv.FormatFloat(km, 'f', 1, 64) + " km"
}

// TruncateWithEllipsis shortens text to the provided rune limit and appends an ellipsis when truncated.
func TruncateWithEllipsis(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 1 {
		return "…"
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
