package httpx

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/senpy/sen-dashboard/internal/adapters/fixtures"
	"github.com/senpy/sen-dashboard/internal/adapters/memory"
	"github.com/senpy/sen-dashboard/internal/domain/guard"
	"github.com/senpy/sen-dashboard/internal/domain/nav"
	mockauth "github.com/senpy/sen-dashboard/internal/mocks/auth"
	"github.com/senpy/sen-dashboard/internal/service"
)

// testApp is the full router over in-memory adapters, driven through a real
// HTTP server and a cookie-keeping client.
type testApp struct {
	srv     *httptest.Server
	base    *url.URL
	client  *http.Client
	gateway *mockauth.MockGateway
	store   *memory.SessionStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	SkipIfNoTemplates(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewSessionStore(logger)
	gw := mockauth.NewMockGateway()
	reports := service.NewReportService(service.ReportServiceOptions{Logger: logger})

	router, err := NewRouter(RouterServices{
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Gateway:  gw,
			Sessions: store,
			Config:   service.AuthServiceConfig{Logger: logger, Cleaners: []service.SessionCleaner{reports}},
		}),
		Guard: service.NewRouteGuard(service.RouteGuardOptions{
			Sessions: store,
			Policy:   guard.NewPolicy(ProtectedRoutes()...),
			Config:   service.RouteGuardConfig{Logger: logger},
		}),
		Reports:    reports,
		Dashboard:  service.NewDashboardService(service.DashboardServiceOptions{Data: fixtures.NewEmbedded(), Reports: reports}),
		TemplateFS: os.DirFS(TemplatePathFromTest),
		Logger:     logger,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	app := &testApp{srv: srv, base: base, gateway: gw, store: store}
	app.client = app.newClient(t)
	return app
}

// newClient returns a client with its own cookie jar, i.e. a separate browser.
func (a *testApp) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) cookie(name string) string {
	for _, c := range a.client.Jar.Cookies(a.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

type reqOpt func(*http.Request)

func asHTMX(r *http.Request) { r.Header.Set("Hx-Request", "true") }

func withoutCSRF(r *http.Request) { r.Header.Del(DefaultCSRFHeaderName) }

func (a *testApp) get(t *testing.T, path string, opts ...reqOpt) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.srv.URL+path, nil)
	require.NoError(t, err)
	for _, o := range opts {
		o(req)
	}
	return a.do(t, req)
}

// post submits a form. A GET /login first guarantees a CSRF cookie, whose
// value goes out in the header like the browser script sends it.
func (a *testApp) post(t *testing.T, path string, form url.Values, opts ...reqOpt) (*http.Response, string) {
	t.Helper()
	if a.cookie(DefaultCSRFCookieName) == "" {
		a.get(t, guard.LoginPath)
	}
	req, err := http.NewRequest(http.MethodPost, a.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(DefaultCSRFHeaderName, a.cookie(DefaultCSRFCookieName))
	for _, o := range opts {
		o(req)
	}
	return a.do(t, req)
}

func (a *testApp) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (a *testApp) login(t *testing.T, email, password string) {
	t.Helper()
	resp, _ := a.post(t, guard.LoginPath, url.Values{"email": {email}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, guard.HomePath, resp.Header.Get("Location"))
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// menuPaths lists the sidebar links of a rendered shell, dashboard link excluded.
func menuPaths(t *testing.T, body string) []string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && strings.Contains(attr(n, "class"), "menu-item") {
			if p := attr(n, "data-path"); p != guard.HomePath {
				out = append(out, p)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func TestRouter_AdminLoginShowsFullMenu(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "alice@example.com", "secret1")

	resp, body := app.get(t, guard.HomePath)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, nav.Paths(), menuPaths(t, body))
	assert.Len(t, menuPaths(t, body), 7)
	assert.True(t, ContainsAll(body, []string{"Alice", "alice@example.com", "Administrador", appTitle}), body)
}

func TestRouter_StandardUserMenu(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "bob@example.com", "hunter2")

	_, body := app.get(t, guard.HomePath)
	paths := menuPaths(t, body)
	assert.Len(t, paths, 5)
	assert.NotContains(t, paths, "/admin/dashboard")
}

func TestRouter_WrongPasswordShowsAuthError(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.post(t, guard.LoginPath, url.Values{"email": {"alice@example.com"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Error de Autenticación")
	assert.Contains(t, body, `value="alice@example.com"`)
	assert.Equal(t, 1, app.gateway.Calls())

	// The failed attempt did not create a session.
	resp, _ = app.get(t, guard.HomePath)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, guard.LoginPath, resp.Header.Get("Location"))
}

func TestRouter_HTMXLoginRedirectsWithHeader(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.post(t, guard.LoginPath, url.Values{"email": {"bob@example.com"}, "password": {"hunter2"}}, asHTMX)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, guard.HomePath, resp.Header.Get("Hx-Redirect"))

	// Authenticated sessions never reach the login handler again.
	resp, _ = app.post(t, guard.LoginPath, url.Values{"email": {"x@example.com"}, "password": {"y"}}, asHTMX)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, guard.HomePath, resp.Header.Get("Hx-Redirect"))
	assert.Equal(t, 1, app.gateway.Calls())
}

func TestRouter_LogoutReturnsToLogin(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "alice@example.com", "secret1")

	resp, _ := app.post(t, PathLogout, url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, guard.LoginPath, resp.Header.Get("Location"))

	resp, _ = app.get(t, guard.HomePath)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, guard.LoginPath, resp.Header.Get("Location"))
}

func TestRouter_UnauthenticatedRedirectsWithoutGatewayCall(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{guard.HomePath, "/focos-incendio", "/admin/dashboard", PathMap, "/details/fires", "/", "/home/foo"} {
		resp, _ := app.get(t, path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, guard.LoginPath, resp.Header.Get("Location"), path)
	}
	assert.Zero(t, app.gateway.Calls())
}

func TestRouter_AuthenticatedLoginAndUnknownPathsGoHome(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "bob@example.com", "hunter2")

	for _, path := range []string{
		guard.LoginPath, "/", "/no-such-page",
		"/home/foo", "/reports/bogus", "/focos-incendio/x", "/details/fires/extra", PathReports,
	} {
		resp, _ := app.get(t, path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, guard.HomePath, resp.Header.Get("Location"), path)
	}
}

func TestRouter_LoginIssuesNewSessionCookie(t *testing.T) {
	app := newTestApp(t)

	// A session ID chosen by someone else before login.
	planted := "11111111-2222-4333-8444-555555555555"
	app.client.Jar.SetCookies(app.base, []*http.Cookie{{Name: DefaultSessionCookieName, Value: planted, Path: "/"}})
	require.Equal(t, planted, app.cookie(DefaultSessionCookieName))

	app.login(t, "alice@example.com", "secret1")
	issued := app.cookie(DefaultSessionCookieName)
	assert.NotEqual(t, planted, issued)
	assert.NotEmpty(t, issued)

	resp, _ := app.get(t, "/admin/dashboard")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Another browser holding the planted ID stays logged out.
	other := app.newClient(t)
	other.Jar.SetCookies(app.base, []*http.Cookie{{Name: DefaultSessionCookieName, Value: planted, Path: "/"}})
	otherResp, err := other.Get(app.srv.URL + "/admin/dashboard")
	require.NoError(t, err)
	otherResp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, otherResp.StatusCode)
	assert.Equal(t, guard.LoginPath, otherResp.Header.Get("Location"))
}

func TestRouter_AdminSectionsRequireAdmin(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "bob@example.com", "hunter2")

	resp, body := app.get(t, "/admin/reportes")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "No tiene permisos")

	admin := newTestApp(t)
	admin.login(t, "alice@example.com", "secret1")
	resp, body = admin.get(t, "/admin/reportes")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No hay reportes pendientes.")
}

func TestRouter_PartialNavigation(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "bob@example.com", "hunter2")

	resp, body := app.get(t, "/personas-desplazadas", asHTMX)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, `hx-swap-oob="outerHTML"`)
	assert.Contains(t, body, "Personas Desplazadas")
	assert.Contains(t, resp.Header.Get("Hx-Trigger"), "nav:activate")
}

func TestRouter_Map(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "bob@example.com", "hunter2")

	resp, body := app.get(t, PathMap+"?lat=-25.3&lon=-57.6", asHTMX)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-located="true"`)
	assert.NotContains(t, body, "geo-message")

	resp, body = app.get(t, PathMap+"?geo_error=denied", asHTMX)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-located="false"`)
	assert.Contains(t, body, "Permisos de ubicación denegados")

	_, body = app.get(t, PathMap+"?lat=abc&lon=1", asHTMX)
	assert.Contains(t, body, "Error al obtener la ubicación")
}

func TestRouter_Details(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "bob@example.com", "hunter2")

	resp, body := app.get(t, PathDetails+"fires", asHTMX)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Focos de Incendio")
	assert.Contains(t, body, "<table")

	_, body = app.get(t, PathDetails+"hectares", asHTMX)
	assert.Contains(t, body, "Detalles no disponibles para esta sección")
}

func TestRouter_ReportFlow(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "bob@example.com", "hunter2")

	resp, body := app.get(t, PathNewReport, asHTMX)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-step="1"`)

	details := url.Values{"type": {"fire"}, "title": {""}, "description": {"Humo denso"}, "severity": {"high"}}
	resp, body = app.post(t, PathReportStep, details, asHTMX)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "field-error")
	assert.Contains(t, body, `data-step="1"`)

	details.Set("title", "Incendio en Luque")
	resp, body = app.post(t, PathReportStep, details, asHTMX)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-step="2"`)

	back := url.Values{"back": {"1"}, "type": {"fire"}, "title": {"Incendio en Luque"}, "description": {"Humo denso"}, "severity": {"high"}}
	_, body = app.post(t, PathReportStep, back, asHTMX)
	assert.Contains(t, body, `value="Incendio en Luque"`)
	assert.Contains(t, body, `data-step="1"`)

	full := url.Values{
		"type": {"fire"}, "title": {"Incendio en Luque"}, "description": {"Humo denso"}, "severity": {"high"},
		"address": {"Ruta 2 km 15"}, "lat": {"-25.27"}, "lng": {"-57.48"},
		"reporter_name": {"Bob"}, "reporter_phone": {"0981 000 000"}, "affected_people": {"12"},
	}
	resp, body = app.post(t, PathReports, full, asHTMX)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Contains(t, body, "RPT-")
	trigger := resp.Header.Get("Hx-Trigger")
	assert.Contains(t, trigger, "reportCreated")
	assert.Contains(t, trigger, "showToast")

	_, body = app.get(t, guard.HomePath)
	assert.Contains(t, body, "Incendio en Luque")
	// The fire card counts the session's fire report.
	assert.Contains(t, body, ">24<")
}

func TestRouter_ReportBadNumbersStayOnContactStep(t *testing.T) {
	app := newTestApp(t)
	app.login(t, "bob@example.com", "hunter2")

	form := url.Values{
		"type": {"other"}, "title": {"t"}, "description": {"d"},
		"address": {"x"}, "lat": {"north"}, "reporter_name": {"Bob"}, "reporter_phone": {"1"},
	}
	resp, body := app.post(t, PathReports, form, asHTMX)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Ingrese una latitud numérica.")
	assert.Contains(t, body, `data-step="2"`)
}

func TestRouter_PostWithoutCSRFIsRejected(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.post(t, guard.LoginPath, url.Values{"email": {"alice@example.com"}, "password": {"secret1"}}, withoutCSRF)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "La sesión del formulario expiró")
	assert.Zero(t, app.gateway.Calls())
}

func TestRouter_SessionStatus(t *testing.T) {
	app := newTestApp(t)

	_, body := app.get(t, PathSessionInfo)
	assert.JSONEq(t, `{"authenticated":false}`, body)

	app.login(t, "alice@example.com", "secret1")
	resp, body := app.get(t, PathSessionInfo)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got sessionStatusJSON
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.True(t, got.Authenticated)
	require.NotNil(t, got.User)
	assert.Equal(t, "Alice", got.User.Name)
	assert.Len(t, got.Menu, 7)
}

func TestRouter_Healthz(t *testing.T) {
	app := newTestApp(t)
	resp, _ := app.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_StaticAssets(t *testing.T) {
	app := newTestApp(t)
	resp, _ := app.get(t, "/static/css/app.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
}

type wsStateFrame struct {
	Event string           `json:"event"`
	Data  sessionStateJSON `json:"data"`
}

func readState(t *testing.T, conn *websocket.Conn) wsStateFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f wsStateFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// dialSession opens the session socket with the client's current cookies.
func (a *testApp) dialSession(t *testing.T) *websocket.Conn {
	t.Helper()
	hdr := http.Header{}
	for _, c := range a.client.Jar.Cookies(a.base) {
		hdr.Add("Cookie", c.String())
	}
	wsURL := "ws" + strings.TrimPrefix(a.srv.URL, "http") + PathSessionWS
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSessionSocket_FollowsLoginAndLogout(t *testing.T) {
	app := newTestApp(t)
	app.get(t, guard.LoginPath)

	conn := app.dialSession(t)
	f := readState(t, conn)
	assert.Equal(t, "session:state", f.Event)
	assert.Equal(t, "unauthenticated", f.Data.State)
	assert.Equal(t, guard.LoginPath, f.Data.Redirect)

	// Login reissues the session, so the socket on the old ID is closed and
	// the tab reconnects with its new cookie.
	app.login(t, "alice@example.com", "secret1")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, wsCloseSessionReplaced), "%v", err)

	conn = app.dialSession(t)
	f = readState(t, conn)
	assert.Equal(t, "authenticated", f.Data.State)
	assert.Equal(t, guard.HomePath, f.Data.Redirect)

	resp2, _ := app.post(t, PathLogout, url.Values{})
	require.Equal(t, http.StatusSeeOther, resp2.StatusCode)
	f = readState(t, conn)
	assert.Equal(t, "unauthenticated", f.Data.State)
}
