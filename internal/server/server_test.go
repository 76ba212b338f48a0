package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openneurolab/neurostream/internal/config"
	"github.com/openneurolab/neurostream/internal/service"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Board: config.BoardSettings{
			Ref:  "bench",
			Name: "Synthetic board",
			Type: "synthetic",
			Gain: 24,
		},
		Stream: config.StreamConfig{DurationSeconds: 1, BufferSamples: 2000},
		Output: config.OutputConfig{Directory: t.TempDir(), Format: "csv"},
	}
	return &Server{
		service: service.New(cfg, ""),
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func dialFeed(t *testing.T, srv *Server) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(srv.handleFeed))
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("Dial failed: %v", err)
	}
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func TestHandleFeed_StreamsFrames(t *testing.T) {
	srv := testServer(t)

	if err := srv.service.PrepareSession(); err != nil {
		t.Fatalf("PrepareSession failed: %v", err)
	}
	defer srv.service.ReleaseSession()
	if err := srv.service.StartStream(); err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	conn, cleanup := dialFeed(t, srv)
	defer cleanup()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame feedFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if frame.Rows != 13 {
		t.Errorf("Expected 13 rows per frame, got %d", frame.Rows)
	}
	if frame.Samples == 0 {
		t.Error("Expected samples in the frame")
	}
}

func TestHandleFeed_DetectsClientCloseWithoutSession(t *testing.T) {
	srv := testServer(t)

	conn, cleanup := dialFeed(t, srv)
	defer cleanup()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	// The handler must answer the close handshake promptly even though no
	// session is producing frames. Before the read pump existed this read
	// would block until the deadline.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			t.Fatalf("Expected close handshake reply, got: %v", err)
		}
		break
	}
}
