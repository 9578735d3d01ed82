package viewmodel

import "github.com/senpy/sen-dashboard/internal/domain/nav"

// User represents the authenticated user context exposed to templates.
type User struct {
	Name  string
	Email string
	Admin bool
}

// Layout captures shared chrome metadata (titles, navigation state, auth flags).
type Layout struct {
	Title           string
	PageTitle       string
	CurrentPage     string
	CurrentPath     string
	CSRFToken       string
	IsAuthenticated bool
	IsAdmin         bool
	User            *User
	Menu            []nav.MenuEntry
}

// Subtitle is the line shown under the header for the current user.
func (l Layout) Subtitle() string {
	if l.IsAdmin {
		return "Administrador"
	}
	return ""
}
