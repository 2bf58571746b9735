package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
)

// newDroppingServer accepts a connection, acks the auth frame and hangs up,
// ending the stream session while the run context stays alive.
func newDroppingServer(t *testing.T, sessions *atomic.Int32) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		var frame api.StreamFrame
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}
		_ = ws.WriteJSON(api.StreamFrame{Type: api.FrameAck})
		sessions.Add(1)
	}))
	t.Cleanup(server.Close)
	return strings.Replace(server.URL, "http", "ws", 1)
}

func TestSessionWatcherExitsWithSession(t *testing.T) {
	var sessions atomic.Int32
	url := newDroppingServer(t, &sessions)
	stream := NewStream(url, "marie:preparer", NewReconciler())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := runtime.NumGoroutine()
	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx) }()

	require.Eventually(t, func() bool { return sessions.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// while the retry ticker waits for the next attempt only the run loop and
	// its ticker remain; the dead session's connection watcher must be gone
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
