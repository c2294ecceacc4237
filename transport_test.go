package relink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestTransport_Send(t *testing.T) {
	var received []byte
	var mu sync.Mutex

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
		}
	})
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), DefaultConfig(wsURL(server)), discardLogger())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer tr.Close()

	testMsg := []byte(`{"test": "message"}`)
	if err := tr.Send(testMsg); err != nil {
		t.Errorf("Send failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if string(received) != string(testMsg) {
		t.Errorf("received %q, want %q", received, testMsg)
	}
}

func TestTransport_MessagesInOrder(t *testing.T) {
	testMessages := []string{
		`{"type": "test", "data": 1}`,
		`{"type": "test", "data": 2}`,
		`{"type": "test", "data": 3}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, msg := range testMessages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), DefaultConfig(wsURL(server)), discardLogger())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer tr.Close()

	var received []string
	timeout := time.After(500 * time.Millisecond)

	for i := 0; i < len(testMessages); i++ {
		select {
		case msg := <-tr.Messages():
			received = append(received, string(msg))
		case <-timeout:
			t.Fatalf("timeout waiting for messages, received %d of %d", len(received), len(testMessages))
		}
	}

	for i, want := range testMessages {
		if received[i] != want {
			t.Errorf("message %d: got %q, want %q", i, received[i], want)
		}
	}
}

func TestTransport_ServerCloseSignalsError(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Drop the connection immediately.
	})
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), DefaultConfig(wsURL(server)), discardLogger())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}
	defer tr.Close()

	select {
	case err := <-tr.Errors():
		if err == nil {
			t.Error("nil error from Errors channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close error")
	}
}

func TestTransport_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	tr, err := DialWebSocket(context.Background(), DefaultConfig(wsURL(server)), discardLogger())
	if err != nil {
		t.Fatalf("DialWebSocket failed: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestTransport_DialFailure(t *testing.T) {
	cfg := DefaultConfig("ws://127.0.0.1:1/ws")
	cfg.HandshakeTimeout = 200 * time.Millisecond

	if _, err := DialWebSocket(context.Background(), cfg, discardLogger()); err == nil {
		t.Fatal("DialWebSocket succeeded against a closed port")
	}
}

// TestConn_EndToEnd runs the full stack against a real WebSocket server that
// answers correlated requests.
func TestConn_EndToEnd(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var env struct {
				Key     string          `json:"key"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(data, &env); err != nil || env.Key == "" {
				continue // heartbeat probe or junk
			}

			reply, _ := json.Marshal(map[string]any{
				"key":     env.Key,
				"type":    "ok",
				"payload": map[string]bool{"pong": true},
			})
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := DefaultConfig(wsURL(server))
	cfg.HeartbeatInterval = 50 * time.Millisecond

	c := New(cfg, discardLogger())
	defer c.Cleanup()

	connected := make(chan struct{})
	c.OnNext(EventConnect, func(Event) { close(connected) })
	c.Connect()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connect")
	}

	fut, err := c.Send(map[string]string{"type": "PING"}, 2*time.Second)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, err := fut.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if string(payload) != `{"pong":true}` {
		t.Errorf("payload = %s, want {\"pong\":true}", payload)
	}
}

func TestConn_ReconnectAfterServerDrop(t *testing.T) {
	var connCount int
	var mu sync.Mutex

	server := mockWSServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		connCount++
		n := connCount
		mu.Unlock()

		if n == 1 {
			// First connection: drop it right away.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := DefaultConfig(wsURL(server))
	cfg.ReconnectDelay = 30 * time.Millisecond
	cfg.ReconnectJitter = 10 * time.Millisecond
	cfg.HeartbeatInterval = time.Hour

	c := New(cfg, discardLogger())
	defer c.Cleanup()

	events := make(chan EventKind, 16)
	c.On(EventConnect, func(Event) { events <- EventConnect })
	c.On(EventDisconnect, func(Event) { events <- EventDisconnect })

	c.Connect()

	want := []EventKind{EventConnect, EventDisconnect, EventConnect}
	for _, kind := range want {
		select {
		case got := <-events:
			if got != kind {
				t.Fatalf("event = %s, want %s", got, kind)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for %s event", kind)
		}
	}
}

func TestTransport_RejectsBadScheme(t *testing.T) {
	if _, err := DialWebSocket(context.Background(), DefaultConfig("http://example.invalid"), discardLogger()); err == nil {
		t.Fatal("DialWebSocket accepted a non-ws URL")
	}
}
