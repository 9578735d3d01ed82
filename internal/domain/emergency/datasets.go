package emergency

import "strings"

// StatCard is one headline figure of the dashboard.
type StatCard struct {
	ID          string
	Title       string
	Value       int
	Description string
	Change      string
	Icon        string
	Color       string
}

// DisplacedRecord is a row of the displaced-people dataset.
type DisplacedRecord struct {
	ID       int    `yaml:"id"`
	Location string `yaml:"location"`
	Families int    `yaml:"families"`
	People   int    `yaml:"people"`
	Reason   string `yaml:"reason"`
	Date     string `yaml:"date"`
	Status   string `yaml:"status"`
	Shelter  string `yaml:"shelter"`
}

// FireIncident is a row of the fire incidents dataset.
type FireIncident struct {
	ID        int    `yaml:"id"`
	Location  string `yaml:"location"`
	Hectares  int    `yaml:"hectares"`
	Status    string `yaml:"status"`
	Severity  string `yaml:"severity"`
	StartDate string `yaml:"start_date"`
	Resources string `yaml:"resources"`
	Cause     string `yaml:"cause"`
}

// PovertyRecord is a row of the poverty dataset.
type PovertyRecord struct {
	Department           string   `yaml:"department"`
	District             string   `yaml:"district"`
	Locality             string   `yaml:"locality"`
	Population           int      `yaml:"population"`
	VulnerablePopulation int      `yaml:"vulnerable_population"`
	Percentage           float64  `yaml:"percentage"`
	LastUpdate           string   `yaml:"last_update"`
	Programs             []string `yaml:"programs"`
}

// FoodDistribution is a row of the food assistance dataset.
type FoodDistribution struct {
	Zone             string   `yaml:"zone"`
	Kilos            int      `yaml:"kilos"`
	Families         int      `yaml:"families"`
	LastDistribution string   `yaml:"last_distribution"`
	NextDistribution string   `yaml:"next_distribution"`
	Coordinator      string   `yaml:"coordinator"`
	Products         []string `yaml:"products"`
}

// Trend is the direction of a poverty indicator.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendStable Trend = "stable"
	TrendDown   Trend = "down"
)

// PovertyStatus is a per-department summary shown on the dashboard.
type PovertyStatus struct {
	Department string `yaml:"department"`
	Affected   int    `yaml:"affected"`
	Percentage int    `yaml:"percentage"`
	Trend      Trend  `yaml:"trend"`
}

// FireHistory holds the aggregate fire figures of the details view.
type FireHistory struct {
	Total        int `yaml:"total"`
	Hectares     int `yaml:"hectares"`
	ControlledPc int `yaml:"controlled_pct"`
	AverageDays  int `yaml:"average_days"`
}

// Datasets bundles every static collection the dashboard renders.
type Datasets struct {
	MapEvents        []Event            `yaml:"map_events"`
	RecentEvents     []RecentEvent      `yaml:"recent_events"`
	Displaced        []DisplacedRecord  `yaml:"displaced"`
	Fires            []FireIncident     `yaml:"fires"`
	FireHistory      FireHistory        `yaml:"fire_history"`
	Poverty          []PovertyRecord    `yaml:"poverty"`
	Food             []FoodDistribution `yaml:"food"`
	PovertyStatus    []PovertyStatus    `yaml:"poverty_status"`
	RecentEventCount int                `yaml:"recent_event_count"`
}

// DisplacedSummary aggregates the displaced dataset.
type DisplacedSummary struct {
	Families    int
	People      int
	Departments int
	Shelters    int
}

// SummarizeDisplaced totals families and people and counts distinct
// departments and shelters. The department is the text before " - ".
func SummarizeDisplaced(rows []DisplacedRecord) DisplacedSummary {
	var s DisplacedSummary
	departments := map[string]struct{}{}
	shelters := map[string]struct{}{}
	for _, r := range rows {
		s.Families += r.Families
		s.People += r.People
		departments[departmentOf(r.Location)] = struct{}{}
		if r.Shelter != "" {
			shelters[r.Shelter] = struct{}{}
		}
	}
	s.Departments = len(departments)
	s.Shelters = len(shelters)
	return s
}

func departmentOf(location string) string {
	dept, _, _ := strings.Cut(location, " - ")
	return dept
}

// TotalAffected sums the affected population across departments.
func TotalAffected(rows []PovertyStatus) int {
	total := 0
	for _, r := range rows {
		total += r.Affected
	}
	return total
}

// StatusColor maps a dataset status to its badge class.
func StatusColor(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "activo", "en evaluación":
		return "bg-red-500"
	case "controlado", "asistidos":
		return "bg-yellow-500"
	case "extinguido", "reubicados":
		return "bg-green-500"
	default:
		return "bg-gray-500"
	}
}

// SeverityColor maps a Spanish severity label to its text class.
func SeverityColor(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "alta":
		return "text-red-600"
	case "media":
		return "text-yellow-600"
	case "baja":
		return "text-green-600"
	default:
		return "text-gray-600"
	}
}
