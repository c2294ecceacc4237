package relink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one physical connection. The Conn owns it exclusively: frames
// arrive on Messages in delivery order, and a fatal error on Errors signals
// that the connection is gone.
type Transport interface {
	// Send writes one frame to the connection.
	Send(data []byte) error

	// Close releases the connection. Safe to call repeatedly.
	Close() error

	// Messages returns the inbound frame channel.
	Messages() <-chan []byte

	// Errors returns a channel that yields the fatal error that ended the
	// connection.
	Errors() <-chan error
}

// DialFunc opens a Transport. The default dials a WebSocket; tests inject
// fakes.
type DialFunc func(ctx context.Context, cfg Config) (Transport, error)

// wsTransport implements Transport over gorilla/websocket.
type wsTransport struct {
	cfg    Config
	logger *slog.Logger

	conn *websocket.Conn

	messages chan []byte
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// DialWebSocket opens a WebSocket connection and starts its read loop.
func DialWebSocket(ctx context.Context, cfg Config, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	t := &wsTransport{
		cfg:      cfg,
		logger:   logger,
		conn:     conn,
		messages: make(chan []byte, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}

	// Answer protocol-level pings from the server.
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	go t.readLoop()

	logger.Debug("websocket connected", "url", cfg.URL)

	return t, nil
}

// Send writes one text frame.
func (t *wsTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and releases the connection.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)

	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return t.conn.Close()
}

// Messages returns the inbound frame channel.
func (t *wsTransport) Messages() <-chan []byte {
	return t.messages
}

// Errors returns the fatal error channel.
func (t *wsTransport) Errors() <-chan error {
	return t.errors
}

// readLoop reads frames until the connection fails or Close is called.
func (t *wsTransport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			// Ignore the read error caused by our own Close.
			select {
			case <-t.done:
			default:
				select {
				case t.errors <- err:
				default:
				}
			}
			return
		}

		select {
		case t.messages <- data:
		case <-t.done:
			return
		default:
			t.logger.Warn("message buffer full, dropping frame")
		}
	}
}
