package httpx

import (
	"net/http"
	"strings"

	domainauth "github.com/senpy/sen-dashboard/internal/domain/auth"
	"github.com/senpy/sen-dashboard/internal/domain/guard"
	"github.com/senpy/sen-dashboard/internal/domain/nav"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
)

// loginMeta is the page metadata of the login screen.
func loginMeta() PageMeta {
	return PageMeta{Title: "Iniciar Sesión | " + appTitle, PageTitle: "Iniciar Sesión", CurrentPage: PageLogin}
}

// LoginPage renders the login form.
// GET /login.
func (h *UIHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := NewTemplateData(r, loginMeta()).Build()
	if err := h.T.RenderFragment(w, http.StatusOK, "login-page", data); err != nil {
		h.logAndRenderTemplateError(w, r, err, "login page render")
	}
}

// LoginSubmit exchanges the submitted credentials for a session. Failures
// re-render the form under an "Error de Autenticación" alert; success
// redirects to the dashboard.
// POST /login.
func (h *UIHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLoginError(w, r, "", apperrors.Validation("Formulario inválido."))
		return
	}
	creds := domainauth.Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}

	res, err := h.Auth.Login(r.Context(), sessionID(r), creds)
	if err != nil {
		h.renderLoginError(w, r, creds.Email, err)
		return
	}

	setSessionCookie(w, r, h.SessionCookie, res.SessionID)
	redirectTo(w, r, guard.HomePath)
}

// renderLoginError shows the login form again, keeping the email but never the password.
func (h *UIHandlers) renderLoginError(w http.ResponseWriter, r *http.Request, email string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger().ErrorContext(r.Context(), "login failed", "error", err)
	}

	data := NewTemplateData(r, loginMeta()).
		WithError(apperrors.UserMessage(err, apperrors.DefaultAuthenticationMessage)).
		With("ErrorTitle", authErrorHeadline).
		With("Email", email).
		Build()

	name := "login-page"
	if IsHTMX(r) {
		name = "login-form"
	}
	h.renderFragment(w, r, status, name, data)
}

// Logout clears the session and returns to the login page. The browsing
// context cookie is kept; only the stored session ends.
// POST /logout.
func (h *UIHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), sessionID(r)); err != nil {
		h.renderError(w, r, err)
		return
	}
	redirectTo(w, r, guard.LoginPath)
}

type menuEntryJSON struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Admin bool   `json:"admin,omitempty"`
}

type sessionStatusJSON struct {
	Authenticated bool             `json:"authenticated"`
	User          *domainauth.User `json:"user,omitempty"`
	Menu          []menuEntryJSON  `json:"menu,omitempty"`
}

// SessionStatus reports the current session and its menu. Tokens are never
// included.
// GET /session/status.
func (h *UIHandlers) SessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Auth.CurrentSession(r.Context(), sessionID(r))
	if err != nil {
		h.logger().WarnContext(r.Context(), "session status read failed", "error", err)
		WriteJSON(w, http.StatusOK, sessionStatusJSON{})
		return
	}
	if !sess.Authenticated() {
		WriteJSON(w, http.StatusOK, sessionStatusJSON{})
		return
	}

	menu := nav.ComputeMenu(sess)
	out := sessionStatusJSON{
		Authenticated: true,
		User:          sess.User,
		Menu:          make([]menuEntryJSON, len(menu)),
	}
	for i, e := range menu {
		out.Menu[i] = menuEntryJSON{Label: e.Label, Path: e.Path, Admin: e.Admin}
	}
	WriteJSON(w, http.StatusOK, out)
}
