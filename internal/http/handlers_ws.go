package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/senpy/sen-dashboard/internal/domain/guard"
)

// wsCloseSessionReplaced tells the tab to reconnect at once: its cookie now
// names a different session.
const wsCloseSessionReplaced = 4000

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// wsMessage is the envelope pushed to open tabs.
type wsMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// sessionStateJSON tells a tab which state its session is in and where that
// state sends protected or public pages.
type sessionStateJSON struct {
	State    string `json:"state"`
	Redirect string `json:"redirect"`
}

func stateMessage(s guard.State) wsMessage {
	redirect := guard.LoginPath
	if s == guard.Authenticated {
		redirect = guard.HomePath
	}
	return wsMessage{Event: "session:state", Data: sessionStateJSON{State: s.String(), Redirect: redirect}}
}

// SessionSocket keeps a tab informed of its session's guard state so a login
// or logout in another tab navigates it without a reload. The origin must
// match the host.
// GET /session/ws.
type SessionSocket struct {
	Guard    GuardService
	Upgrader websocket.Upgrader
	Handlers *UIHandlers
}

func (s *SessionSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := s.Handlers.logger()
	sid := sessionID(r)

	// The server's WriteTimeout would cut the socket; writeWS sets a deadline per frame.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.DebugContext(r.Context(), "clearing write deadline failed", "error", err)
	}

	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		log.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Hijacked requests keep their context until the handler returns or the
	// server's base context is cancelled on shutdown.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	tracker, err := s.Guard.Track(ctx, sid)
	if err != nil {
		log.ErrorContext(ctx, "session tracking failed", "error", err)
		closeWS(conn, websocket.CloseInternalServerErr, "tracking unavailable")
		return
	}

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	if err := writeWS(conn, stateMessage(tracker.State())); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			closeWS(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case state, ok := <-tracker.Changes():
			if ctx.Err() != nil {
				closeWS(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}
			if !ok {
				closeWS(conn, wsCloseSessionReplaced, "session replaced")
				return
			}
			if err := writeWS(conn, stateMessage(state)); err != nil {
				log.DebugContext(ctx, "websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and signals when the peer goes away.
func (s *SessionSocket) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWS(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

func writeWS(conn *websocket.Conn, msg wsMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
