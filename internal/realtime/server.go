// Package realtime is the websocket transport in front of the subscription
// registry. The protocol is a single JSON frame type; the first frame of
// every connection must be auth.
package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
	"github.com/ateliercolor/presstrack/internal/auth"
	"github.com/ateliercolor/presstrack/internal/events"
	"github.com/ateliercolor/presstrack/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 1 << 16
	sendBufferSize = 32
)

type Handler struct {
	authenticator auth.Authenticator
	registry      *events.SubscriptionRegistry
	broadcaster   *events.Broadcaster
	upgrader      websocket.Upgrader
}

func NewHandler(authenticator auth.Authenticator, registry *events.SubscriptionRegistry, broadcaster *events.Broadcaster) *Handler {
	return &Handler{
		authenticator: authenticator,
		registry:      registry,
		broadcaster:   broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxFrameSize,
			WriteBufferSize: maxFrameSize,
			// cross-origin policy is enforced by the cors middleware
			// on the http layer
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Named("realtime").Warnw("websocket upgrade failed", "error", err)
		return
	}

	conn := h.registry.Connect()
	metrics.UpdateConnectedClientsMetric(h.registry.Len())

	session := &session{
		handler: h,
		conn:    conn,
		ws:      ws,
		send:    make(chan api.StreamFrame, sendBufferSize),
		done:    make(chan struct{}),
	}
	defer session.close()

	go session.writeLoop()
	session.readLoop(r)
}

// session is one websocket connection. The write loop is the only goroutine
// writing to the socket.
type session struct {
	handler       *Handler
	conn          *events.Connection
	ws            *websocket.Conn
	send          chan api.StreamFrame
	done          chan struct{}
	authenticated bool
}

func (s *session) close() {
	s.handler.registry.Disconnect(s.conn.ID)
	metrics.UpdateConnectedClientsMetric(s.handler.registry.Len())
	close(s.send)
	_ = s.ws.Close()
}

func (s *session) readLoop(r *http.Request) {
	s.ws.SetReadLimit(maxFrameSize)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame api.StreamFrame
		if err := s.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.S().Named("realtime").Debugw("connection closed", "error", err, "conn_id", s.conn.ID)
			}
			return
		}

		if !s.authenticated && frame.Type != api.FrameAuth {
			s.reply(api.StreamFrame{Type: api.FrameError, Message: "authentication required"})
			return
		}

		switch frame.Type {
		case api.FrameAuth:
			if !s.handleAuth(r, frame) {
				return
			}
		case api.FrameSubscribe:
			s.handleSubscribe(frame)
		case api.FrameUnsubscribe:
			s.handleUnsubscribe(frame)
		case api.FrameReplay:
			s.handleReplay(frame)
		default:
			s.reply(api.StreamFrame{Type: api.FrameError, Message: "unknown frame type: " + frame.Type})
		}
	}
}

func (s *session) handleAuth(r *http.Request, frame api.StreamFrame) bool {
	user, err := s.handler.authenticator.VerifyToken(r.Context(), frame.Token)
	if err != nil {
		s.reply(api.StreamFrame{Type: api.FrameError, Message: "authentication failed"})
		return false
	}
	if err := s.handler.registry.Authenticate(s.conn.ID, user); err != nil {
		s.reply(api.StreamFrame{Type: api.FrameError, Message: "authentication failed"})
		return false
	}

	s.authenticated = true
	s.reply(api.StreamFrame{Type: api.FrameAck})
	zap.S().Named("realtime").Infow("connection authenticated",
		"conn_id", s.conn.ID, "username", user.Username, "role", user.Role)
	return true
}

func (s *session) handleSubscribe(frame api.StreamFrame) {
	scope, err := events.ParseScope(frame.Scope)
	if err != nil {
		s.reply(api.StreamFrame{Type: api.FrameError, Message: err.Error()})
		return
	}
	if err := s.handler.registry.Subscribe(s.conn.ID, scope); err != nil {
		s.reply(api.StreamFrame{Type: api.FrameError, Message: err.Error()})
		return
	}
	s.reply(api.StreamFrame{Type: api.FrameAck, Scope: frame.Scope})
}

func (s *session) handleUnsubscribe(frame api.StreamFrame) {
	scope, err := events.ParseScope(frame.Scope)
	if err != nil {
		s.reply(api.StreamFrame{Type: api.FrameError, Message: err.Error()})
		return
	}
	if err := s.handler.registry.Unsubscribe(s.conn.ID, scope); err != nil {
		s.reply(api.StreamFrame{Type: api.FrameError, Message: err.Error()})
		return
	}
	s.reply(api.StreamFrame{Type: api.FrameAck, Scope: frame.Scope})
}

// handleReplay pushes the backlog tail for a scope through the normal event
// path. A client that applies a replayed event twice converges anyway, the
// reconciler drops events that are not newer than its local copy.
func (s *session) handleReplay(frame api.StreamFrame) {
	scope, err := events.ParseScope(frame.Scope)
	if err != nil {
		s.reply(api.StreamFrame{Type: api.FrameError, Message: err.Error()})
		return
	}
	for _, env := range s.handler.broadcaster.Replay(scope, frame.Cursor) {
		ev := env.Event
		if !s.deliver(api.StreamFrame{Type: api.FrameEvent, Cursor: env.Cursor, Event: &ev}) {
			return
		}
	}
}

// reply enqueues a frame for the write loop. A session too slow to drain its
// own control frames is closed.
func (s *session) reply(frame api.StreamFrame) {
	select {
	case s.send <- frame:
	default:
		_ = s.ws.Close()
	}
}

// deliver blocks until the write loop takes the frame. Replay batches are
// bounded by the backlog window, not by the send buffer, so they get
// backpressure instead of the slow-consumer close.
func (s *session) deliver(frame api.StreamFrame) bool {
	select {
	case s.send <- frame:
		return true
	case <-s.done:
		return false
	}
}

func (s *session) writeLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	defer close(s.done)

	for {
		select {
		case frame, ok := <-s.send:
			if !ok {
				_ = s.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				return
			}
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteJSON(frame); err != nil {
				return
			}
		case env, ok := <-s.conn.Outbox():
			if !ok {
				// registry dropped the connection, likely outbox overflow
				_ = s.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				_ = s.ws.Close()
				return
			}
			ev := env.Event
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteJSON(api.StreamFrame{Type: api.FrameEvent, Cursor: env.Cursor, Event: &ev}); err != nil {
				return
			}
		case <-pingTicker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
