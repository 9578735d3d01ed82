package emergency

import (
	"math"
	"sort"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DefaultCenter is the map center when the viewer's position is unknown (Asunción).
var DefaultCenter = Point{Lat: -25.2637, Lon: -57.5759}

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// Valid reports whether the point lies within coordinate bounds.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Nearest returns up to limit events ordered by ascending distance from
// origin. Ties keep their input order. The input slice is not modified.
func Nearest(origin Point, events []Event, limit int) []NearbyEvent {
	out := make([]NearbyEvent, len(events))
	for i, e := range events {
		out[i] = NearbyEvent{Event: e, DistanceKm: Haversine(origin, e.Location)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GeolocationMessage maps a client geolocation failure code to the message
// shown above the map.
func GeolocationMessage(code string) string {
	switch code {
	case "denied":
		return "Permisos de ubicación denegados"
	case "unavailable":
		return "Ubicación no disponible"
	case "timeout":
		return "Tiempo de espera agotado"
	case "unsupported":
		return "La geolocalización no está soportada en este navegador"
	default:
		return "Error al obtener la ubicación"
	}
}
