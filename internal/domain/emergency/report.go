package emergency

import (
	"strconv"
	"time"
)

// ReportType categorises a citizen report.
type ReportType string

const (
	ReportFire           ReportType = "fire"
	ReportDisplacement   ReportType = "displacement"
	ReportFoodNeed       ReportType = "food_need"
	ReportInfrastructure ReportType = "infrastructure"
	ReportOther          ReportType = "other"
)

// ReportTypeOption describes a report type for the form.
type ReportTypeOption struct {
	Value       ReportType
	Label       string
	Description string
}

// ReportTypes lists the selectable report types in display order.
var ReportTypes = []ReportTypeOption{
	{ReportFire, "Incendio", "Focos de incendio, humo, o riesgo de fuego"},
	{ReportDisplacement, "Desplazamiento", "Familias evacuadas o en riesgo"},
	{ReportFoodNeed, "Necesidad Alimentaria", "Falta de alimentos o asistencia"},
	{ReportInfrastructure, "Infraestructura", "Daños en caminos, puentes, servicios"},
	{ReportOther, "Otro", "Otra situación de emergencia"},
}

// Label returns the display name of the report type.
func (t ReportType) Label() string {
	for _, opt := range ReportTypes {
		if opt.Value == t {
			return opt.Label
		}
	}
	return string(t)
}

// ReportStatus tracks a report through verification.
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportVerified ReportStatus = "verified"
	ReportResolved ReportStatus = "resolved"
)

// Location is where a reported situation happens.
type Location struct {
	Address string
	Lat     *float64
	Lng     *float64
}

// Reporter identifies the citizen filing a report.
type Reporter struct {
	Name  string
	Phone string
	Email string
}

// CitizenReport is a report filed through the dashboard form.
type CitizenReport struct {
	ID             string
	Type           ReportType
	Title          string
	Description    string
	Severity       Severity
	Location       Location
	Reporter       Reporter
	Timestamp      time.Time
	Status         ReportStatus
	AffectedPeople *int
}

// ReportID derives the identifier of a report created at t.
func ReportID(t time.Time) string {
	return "report_" + strconv.FormatInt(t.UnixMilli(), 10)
}

// DisplayID is the short reference shown to the citizen after submitting.
func (r CitizenReport) DisplayID() string {
	ms := strconv.FormatInt(r.Timestamp.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "RPT-" + ms
}

// ReportDetails are the fields collected by the first step of the form.
type ReportDetails struct {
	Type        ReportType `form:"type" validate:"required,oneof=fire displacement food_need infrastructure other"`
	Title       string     `form:"title" validate:"required,max=120"`
	Description string     `form:"description" validate:"required,max=2000"`
	Severity    Severity   `form:"severity" validate:"omitempty,oneof=low medium high"`
}

// CreateReportRequest carries a complete form submission.
type CreateReportRequest struct {
	ReportDetails
	Address        string   `form:"address" validate:"required,max=255"`
	Lat            *float64 `form:"lat" validate:"omitempty,latitude"`
	Lng            *float64 `form:"lng" validate:"omitempty,longitude"`
	ReporterName   string   `form:"reporter_name" validate:"required,max=120"`
	ReporterPhone  string   `form:"reporter_phone" validate:"required,max=40"`
	ReporterEmail  string   `form:"reporter_email" validate:"omitempty,email"`
	AffectedPeople *int     `form:"affected_people" validate:"omitempty,min=0"`
}
