// Package emergency holds the informational data shown on the dashboard:
// map events, citizen reports, statistic cards and the details datasets.
package emergency

import (
	"strings"
	"time"
)

// EventType categorises a map event.
type EventType string

const (
	EventFire         EventType = "fire"
	EventDisplacement EventType = "displacement"
	EventPoverty      EventType = "poverty"
	EventFood         EventType = "food"
)

// Label returns the Spanish display name of the event type.
func (t EventType) Label() string {
	switch t {
	case EventFire:
		return "Incendio"
	case EventDisplacement:
		return "Desplazamiento"
	case EventPoverty:
		return "Pobreza"
	case EventFood:
		return "Alimentación"
	default:
		return "Evento"
	}
}

// Severity grades events and reports.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether the severity is supported.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

// ParseSeverity normalizes s, defaulting to medium when empty.
func ParseSeverity(s string) (Severity, bool) {
	v := Severity(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return SeverityMedium, true
	}
	return v, v.Valid()
}

// Label returns the Spanish display name of the severity.
func (s Severity) Label() string {
	switch s {
	case SeverityHigh:
		return "Alta"
	case SeverityMedium:
		return "Media"
	case SeverityLow:
		return "Baja"
	default:
		return string(s)
	}
}

// Event is a geolocated incident shown on the map.
type Event struct {
	ID          string    `yaml:"id"`
	Type        EventType `yaml:"type"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Location    Point     `yaml:"location"`
	Severity    Severity  `yaml:"severity"`
	// Age is how long before "now" the event was recorded.
	Age time.Duration `yaml:"age"`
}

// Timestamp anchors the event's age to now.
func (e Event) Timestamp(now time.Time) time.Time { return now.Add(-e.Age) }

// NearbyEvent is an event annotated with its distance from the viewer.
type NearbyEvent struct {
	Event
	DistanceKm float64
}

// RecentEvent is a static entry of the recent events feed.
type RecentEvent struct {
	ID          string `yaml:"id"`
	Color       string `yaml:"color"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Location    string `yaml:"location"`
	Timestamp   string `yaml:"timestamp"`
	Badge       string `yaml:"badge"`
}
