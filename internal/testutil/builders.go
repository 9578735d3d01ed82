package testutil

import (
	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	"github.com/senpy/sen-dashboard/internal/domain/emergency"
)

// AuthResultBuilder provides a fluent interface for building AuthResult values for testing.
type AuthResultBuilder struct {
	res domainauth.AuthResult
}

// NewAuthResult creates a builder for a standard (non-admin) user.
func NewAuthResult() *AuthResultBuilder {
	return &AuthResultBuilder{
		res: domainauth.AuthResult{
			AccessToken:  "tok123",
			RefreshToken: "ref456",
			User: domainauth.User{
				ID:    2,
				Name:  "Bob",
				Email: "bob@example.com",
				Role:  2,
			},
		},
	}
}

// AsAdmin switches the user to the administrator role with the Alice profile.
func (b *AuthResultBuilder) AsAdmin() *AuthResultBuilder {
	b.res.User = domainauth.User{ID: 1, Name: "Alice", Email: "alice@example.com", Role: domainauth.RoleAdmin}
	return b
}

// WithTokens sets the access and refresh tokens.
func (b *AuthResultBuilder) WithTokens(access, refresh string) *AuthResultBuilder {
	b.res.AccessToken = access
	b.res.RefreshToken = refresh
	return b
}

// WithUser replaces the user profile.
func (b *AuthResultBuilder) WithUser(u domainauth.User) *AuthResultBuilder {
	b.res.User = u
	return b
}

// Build returns the AuthResult.
func (b *AuthResultBuilder) Build() domainauth.AuthResult { return b.res }

// Session returns the session that writing the result would produce.
func (b *AuthResultBuilder) Session() domainauth.Session { return domainauth.SessionFrom(b.res) }

// ReportRequestBuilder builds complete citizen report submissions.
type ReportRequestBuilder struct {
	req emergency.CreateReportRequest
}

// NewReportRequest creates a builder with every required field filled in.
func NewReportRequest() *ReportRequestBuilder {
	return &ReportRequestBuilder{
		req: emergency.CreateReportRequest{
			ReportDetails: emergency.ReportDetails{
				Type:        emergency.ReportFire,
				Title:       "Humo en el cerro",
				Description: "Columna de humo visible desde la ruta",
				Severity:    emergency.SeverityHigh,
			},
			Address:       "Ruta 9 km 450, Boquerón",
			ReporterName:  "Juan Pérez",
			ReporterPhone: "+595 981 000000",
		},
	}
}

// WithType sets the report type.
func (b *ReportRequestBuilder) WithType(t emergency.ReportType) *ReportRequestBuilder {
	b.req.Type = t
	return b
}

// WithTitle sets the title.
func (b *ReportRequestBuilder) WithTitle(title string) *ReportRequestBuilder {
	b.req.Title = title
	return b
}

// WithoutReporter clears the reporter contact fields.
func (b *ReportRequestBuilder) WithoutReporter() *ReportRequestBuilder {
	b.req.ReporterName = ""
	b.req.ReporterPhone = ""
	return b
}

// WithCoordinates sets the optional coordinates.
func (b *ReportRequestBuilder) WithCoordinates(lat, lng float64) *ReportRequestBuilder {
	b.req.Lat = Float64Ptr(lat)
	b.req.Lng = Float64Ptr(lng)
	return b
}

// Build returns the request.
func (b *ReportRequestBuilder) Build() emergency.CreateReportRequest { return b.req }
