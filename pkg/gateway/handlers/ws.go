package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/covercall/covercall/pkg/gateway/config"
	"github.com/covercall/covercall/pkg/gateway/lifecycle"
	"github.com/covercall/covercall/pkg/gateway/meeting/engine"
	"github.com/covercall/covercall/pkg/gateway/meeting/protocol"
	"github.com/covercall/covercall/pkg/gateway/meeting/sessions"
)

// MeetingSocketHandler handles /ws meeting connections.
type MeetingSocketHandler struct {
	Config    config.Config
	Engine    *engine.Engine
	Logger    *slog.Logger
	Lifecycle *lifecycle.Lifecycle
	Sessions  *sessions.Tracker
}

// lockedConn serializes writes to one websocket connection. gorilla/websocket
// allows a single concurrent writer, while the engine broadcasts from many
// goroutines.
type lockedConn struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (c *lockedConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteJSON(v)
}

func (c *lockedConn) Close() error {
	return c.conn.Close()
}

func (h MeetingSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	if h.Lifecycle.IsDraining() {
		writeJSONError(w, http.StatusServiceUnavailable, "gateway is draining", "")
		return
	}
	if !h.originAllowed(r) {
		writeJSONError(w, http.StatusForbidden, "origin is not allowed", "Origin")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.WSMaxMessageBytes > 0 {
		conn.SetReadLimit(h.Config.WSMaxMessageBytes)
	}

	transport := &lockedConn{conn: conn, writeTimeout: h.Config.WSWriteTimeout}
	connID := h.Engine.Register(transport)
	defer h.Engine.ConnectionClosed(connID)

	unregister := func() {}
	if h.Sessions != nil {
		unregister = h.Sessions.Register(connID, sessions.Handle{
			Cancel: func() { _ = transport.Close() },
			Warn: func(message string) error {
				return transport.WriteJSON(protocol.NewError(message))
			},
		})
	}
	defer unregister()

	h.readLoop(connID, transport, conn)
}

func (h MeetingSocketHandler) readLoop(connID string, transport *lockedConn, conn *websocket.Conn) {
	var currentMeeting string
	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				h.Logger.Debug("websocket read ended", "conn_id", connID, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			_ = transport.WriteJSON(protocol.NewError("frames must be JSON text"))
			continue
		}

		decoded, err := protocol.DecodeClientMessage(frame)
		if err != nil {
			_ = transport.WriteJSON(protocol.NewError(err.Error()))
			continue
		}

		switch m := decoded.(type) {
		case protocol.JoinMeeting:
			userID := strings.TrimSpace(m.UserID)
			if userID == "" {
				userID = uuid.NewString()
			}
			role := strings.TrimSpace(m.Role)
			if role == "" {
				role = protocol.RoleCustomer
			}
			h.Engine.Bind(connID, userID)
			roster, ok := h.Engine.Join(m.MeetingID, connID, userID, role)
			if !ok {
				_ = transport.WriteJSON(protocol.NewError("join failed"))
				continue
			}
			currentMeeting = m.MeetingID
			_ = transport.WriteJSON(protocol.JoinedMeeting{
				Type:         protocol.TypeJoinedMeeting,
				MeetingID:    m.MeetingID,
				UserID:       userID,
				Role:         role,
				Participants: roster,
			})
		case protocol.Signal:
			if m.MeetingID == "" {
				m.MeetingID = currentMeeting
			}
			h.Engine.RelaySignal(connID, m)
		case protocol.AudioChunk:
			meetingID := m.MeetingID
			if meetingID == "" {
				meetingID = currentMeeting
			}
			if err := h.Engine.IngestAudio(meetingID, m.UserID, m.AudioData); err != nil {
				_ = transport.WriteJSON(protocol.NewError("invalid audio chunk: " + err.Error()))
			}
		case protocol.SuggestionRequest:
			meetingID := m.MeetingID
			if meetingID == "" {
				meetingID = currentMeeting
			}
			h.Engine.RequestSuggestion(meetingID, m.UserID, m.Text)
		case protocol.LeaveMeeting:
			meetingID := m.MeetingID
			if meetingID == "" {
				meetingID = currentMeeting
			}
			h.Engine.Leave(meetingID, connID)
			if meetingID == currentMeeting {
				currentMeeting = ""
			}
		}
	}
}

// originAllowed mirrors the CORS allowlist for websocket upgrades. Browsers
// always send Origin; non-browser clients without one are allowed through.
func (h MeetingSocketHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return true
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}
