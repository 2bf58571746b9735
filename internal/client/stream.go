package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jitterbug "github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
)

const (
	handshakeTimeout  = 10 * time.Second
	reconnectInterval = 5 * time.Second
	readLimit         = 1 << 20
)

// Stream is the reconnecting feed behind a dashboard. It dials the realtime
// endpoint, authenticates, re-issues its subscriptions, asks for replay from
// the last cursor it saw and pumps authoritative events into the reconciler.
type Stream struct {
	url        string
	token      string
	reconciler *Reconciler

	mu         sync.Mutex
	scopes     map[string]struct{}
	lastCursor int64
	onFrame    func(frame api.StreamFrame)
}

func NewStream(url, token string, reconciler *Reconciler) *Stream {
	return &Stream{
		url:        url,
		token:      token,
		reconciler: reconciler,
		scopes:     make(map[string]struct{}),
	}
}

// OnFrame installs an observer invoked for every frame received after the
// handshake. Used by the watch command to echo the stream.
func (s *Stream) OnFrame(fn func(frame api.StreamFrame)) {
	s.onFrame = fn
}

// Subscribe registers a scope that survives reconnects.
func (s *Stream) Subscribe(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[scope] = struct{}{}
}

// Unsubscribe releases a scope. Scopes must be released explicitly, they are
// never inferred from view lifetime.
func (s *Stream) Unsubscribe(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes, scope)
}

// LastCursor returns the newest backlog cursor seen on the stream.
func (s *Stream) LastCursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCursor
}

// Run keeps the stream alive until the context is cancelled. Each session
// failure is followed by a jittered reconnect; convergence is eventual, not
// immediate.
func (s *Stream) Run(ctx context.Context) error {
	retryTicker := jitterbug.New(reconnectInterval, &jitterbug.Norm{Stdev: 500 * time.Millisecond, Mean: 0})
	defer retryTicker.Stop()

	for {
		if err := s.session(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.S().Named("stream").Warnw("stream session ended", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-retryTicker.C:
		}
	}
}

func (s *Stream) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	conn.SetReadLimit(readLimit)

	// the watcher must not outlive its session, only this connection
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	if err := s.handshake(conn); err != nil {
		return err
	}

	for {
		var frame api.StreamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		s.handleFrame(frame)
	}
}

// handshake authenticates, re-issues every held subscription and requests
// replay of whatever the backlog still holds past the last seen cursor.
func (s *Stream) handshake(conn *websocket.Conn) error {
	if err := conn.WriteJSON(api.StreamFrame{Type: api.FrameAuth, Token: s.token}); err != nil {
		return err
	}

	var ack api.StreamFrame
	if err := conn.ReadJSON(&ack); err != nil {
		return err
	}
	if ack.Type != api.FrameAck {
		return fmt.Errorf("authentication rejected: %s", ack.Message)
	}

	s.mu.Lock()
	scopes := make([]string, 0, len(s.scopes))
	for scope := range s.scopes {
		scopes = append(scopes, scope)
	}
	cursor := s.lastCursor
	s.mu.Unlock()

	for _, scope := range scopes {
		if err := conn.WriteJSON(api.StreamFrame{Type: api.FrameSubscribe, Scope: scope}); err != nil {
			return err
		}
		if err := conn.WriteJSON(api.StreamFrame{Type: api.FrameReplay, Scope: scope, Cursor: cursor}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) handleFrame(frame api.StreamFrame) {
	if s.onFrame != nil {
		s.onFrame(frame)
	}

	switch frame.Type {
	case api.FrameEvent:
		if frame.Event == nil {
			return
		}
		s.reconciler.ApplyEvent(*frame.Event)
		s.mu.Lock()
		if frame.Cursor > s.lastCursor {
			s.lastCursor = frame.Cursor
		}
		s.mu.Unlock()
	case api.FrameError:
		zap.S().Named("stream").Warnw("server reported error", "message", frame.Message)
	default:
	}
}

// MarshalFrame is a debugging helper used by the CLI watch command.
func MarshalFrame(frame api.StreamFrame) string {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Sprintf("%+v", frame)
	}
	return string(data)
}
