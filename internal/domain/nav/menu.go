// Package nav computes the sidebar menu for a session.
package nav

import "github.com/senpy/sen-dashboard/internal/domain/auth"

// MenuEntry is one sidebar link. Section names the details panel it opens.
type MenuEntry struct {
	Label   string
	Path    string
	Section string
	Icon    string
	Admin   bool
}

var commonEntries = []MenuEntry{
	{Label: "Personas Desplazadas", Path: "/personas-desplazadas", Section: "displaced", Icon: "users"},
	{Label: "Focos de Incendio", Path: "/focos-incendio", Section: "fires", Icon: "flame"},
	{Label: "Asistencia Alimentaria", Path: "/asistencia-alimentaria", Section: "food", Icon: "package"},
	{Label: "Situación de Pobreza", Path: "/situacion-pobreza", Section: "poverty", Icon: "trending-down"},
	{Label: "Eventos Recientes", Path: "/eventos-recientes", Section: "events", Icon: "activity"},
}

var adminEntries = []MenuEntry{
	{Label: "Dashboard Admin", Path: "/admin/dashboard", Section: "admin-dashboard", Icon: "bar-chart", Admin: true},
	{Label: "Validar Reportes", Path: "/admin/reportes", Section: "admin-reports", Icon: "check-circle", Admin: true},
}

// ComputeMenu returns the ordered menu for s: the common entries, followed by
// the administrative entries when the user has role 1. The result is a fresh
// slice the caller may modify.
func ComputeMenu(s auth.Session) []MenuEntry {
	n := len(commonEntries)
	if s.IsAdmin() {
		n += len(adminEntries)
	}
	entries := make([]MenuEntry, 0, n)
	entries = append(entries, commonEntries...)
	if s.IsAdmin() {
		entries = append(entries, adminEntries...)
	}
	return entries
}

// Lookup finds the entry registered for path among every entry, admin included.
func Lookup(path string) (MenuEntry, bool) {
	for _, group := range [][]MenuEntry{commonEntries, adminEntries} {
		for _, e := range group {
			if e.Path == path {
				return e, true
			}
		}
	}
	return MenuEntry{}, false
}

// Paths lists every menu path, for route registration and guard policies.
func Paths() []string {
	paths := make([]string, 0, len(commonEntries)+len(adminEntries))
	for _, e := range commonEntries {
		paths = append(paths, e.Path)
	}
	for _, e := range adminEntries {
		paths = append(paths, e.Path)
	}
	return paths
}
