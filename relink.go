package relink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// errShutdown ends the supervision loop on Cleanup.
var errShutdown = errors.New("shutting down")

// Conn is one logical connection to a remote endpoint. It owns the physical
// transport, reconnects after drops, correlates requests with responses, and
// dispatches lifecycle events. One Conn per URL; no state is shared between
// instances.
type Conn struct {
	cfg    Config
	logger *slog.Logger
	dial   DialFunc

	store *Store
	bus   *Bus
	hb    *heartbeat

	mu        sync.RWMutex
	state     State
	verified  bool
	transport Transport
	running   bool
	done      chan struct{}
}

// New creates a Conn for the given config. The connection is not opened
// until Connect is called.
func New(cfg Config, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	c := &Conn{
		cfg:    cfg,
		logger: logger,
		store:  NewStore(),
		bus:    NewBus(),
	}
	c.dial = func(ctx context.Context, cfg Config) (Transport, error) {
		return DialWebSocket(ctx, cfg, logger)
	}
	c.hb = newHeartbeat(cfg.HeartbeatInterval, c.Ping, logger)

	return c
}

// Connect starts the connection supervision loop. Idempotent: calling it
// while the loop is running is a no-op. The loop dials, pumps frames, and
// after every drop waits a randomized backoff before dialing again. It never
// gives up.
func (c *Conn) Connect() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.state = StateConnecting
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.run(done)
}

// Cleanup releases the transport and all timers without touching registered
// event handlers. A later Connect starts over with the same handlers.
func (c *Conn) Cleanup() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.done)
	c.done = nil
	t := c.transport
	c.transport = nil
	c.verified = false
	c.state = StateDisconnected
	c.mu.Unlock()

	c.hb.Stop()
	if t != nil {
		t.Close()
	}
	c.store.RejectAll(ErrDisconnected)
}

// Send transmits payload and returns a future for the correlated response.
// Fails with ErrNotReady unless connected. A timeout of zero means the
// configured default; if no response arrives within the deadline the future
// rejects with ErrTimeout.
func (c *Conn) Send(payload any, timeout time.Duration) (*Future, error) {
	c.mu.RLock()
	t := c.transport
	st := c.state
	c.mu.RUnlock()

	if st != StateConnected || t == nil {
		return nil, ErrNotReady
	}

	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}

	id := uuid.NewString()
	data, err := json.Marshal(outboundEnvelope{Key: id, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	// Register before transmitting so a fast response cannot miss the slot.
	fut := c.store.Register(id, timeout)

	if err := t.Send(data); err != nil {
		c.store.Reject(id, err)
		return nil, fmt.Errorf("%w: %v", ErrTransmit, err)
	}

	return fut, nil
}

// Verify records an application-level confirmation, distinct from transport
// connectivity, and fires the verify event. The flag clears on disconnect.
func (c *Conn) Verify() {
	c.mu.Lock()
	c.verified = true
	c.mu.Unlock()

	c.bus.Trigger(Event{Kind: EventVerify})
}

// Verified reports whether Verify has been called since the last disconnect.
func (c *Conn) Verified() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.verified
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ping sends one liveness probe. No response is expected or processed.
func (c *Conn) Ping() error {
	c.mu.RLock()
	t := c.transport
	st := c.state
	c.mu.RUnlock()

	if st != StateConnected || t == nil {
		return ErrNotReady
	}
	return t.Send(probePayload)
}

// On registers a persistent handler for the given event kind.
func (c *Conn) On(kind EventKind, h Handler) {
	c.bus.On(kind, h)
}

// OnNext registers a handler invoked only on the next event of the given
// kind.
func (c *Conn) OnNext(kind EventKind, h Handler) {
	c.bus.OnNext(kind, h)
}

// run is the supervision loop: dial, pump, tear down, back off, repeat.
func (c *Conn) run(done chan struct{}) {
	for {
		t, err := c.dial(context.Background(), c.cfg)
		if err != nil {
			c.logger.Warn("connect failed", "url", c.cfg.URL, "error", err)
			if !c.sleepBackoff(done) {
				return
			}
			continue
		}

		c.mu.Lock()
		// Cleanup may have raced with the dial.
		select {
		case <-done:
			c.mu.Unlock()
			t.Close()
			return
		default:
		}
		c.transport = t
		c.state = StateConnected
		c.mu.Unlock()

		c.hb.Start()
		c.logger.Info("connected", "url", c.cfg.URL)
		c.bus.Trigger(Event{Kind: EventConnect})

		err = c.pump(t, done)
		if errors.Is(err, errShutdown) {
			return
		}
		c.teardown(err)

		if !c.sleepBackoff(done) {
			return
		}

		c.mu.Lock()
		c.state = StateConnecting
		c.mu.Unlock()
	}
}

// pump processes inbound frames in delivery order until the transport fails
// or Cleanup is called.
func (c *Conn) pump(t Transport, done chan struct{}) error {
	for {
		select {
		case <-done:
			return errShutdown
		case err := <-t.Errors():
			return err
		case data, ok := <-t.Messages():
			if !ok {
				return errors.New("transport closed")
			}
			c.route(data)
		}
	}
}

// route parses one inbound frame and delivers it: correlated responses to
// the pending store, everything else as a message event.
func (c *Conn) route(data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("dropping unparseable frame", "error", err)
		return
	}

	if env.Key != "" {
		var ok bool
		if env.Type == failureType {
			ok = c.store.Reject(env.Key, &FailureError{Payload: env.Payload})
		} else {
			ok = c.store.Resolve(env.Key, env.Payload)
		}
		if !ok {
			c.logger.Warn("unexpected response", "key", env.Key, "type", env.Type)
		}
		return
	}

	payload := env.Payload
	if len(payload) == 0 {
		payload = data
	}
	c.bus.Trigger(Event{Kind: EventMessage, Payload: payload})
}

// teardown resets connection state after a drop: pending requests fail, the
// heartbeat stops, the transport is released, and the disconnect event fires.
func (c *Conn) teardown(err error) {
	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.verified = false
	c.state = StateDisconnected
	c.mu.Unlock()

	c.hb.Stop()
	if t != nil {
		t.Close()
	}

	c.store.RejectAll(ErrDisconnected)

	c.logger.Warn("disconnected", "url", c.cfg.URL, "error", err)
	c.bus.Trigger(Event{Kind: EventDisconnect, Err: err})
}

// sleepBackoff waits the fixed minimum plus a uniform random slice of the
// jitter window. Returns false if Cleanup ended the wait.
func (c *Conn) sleepBackoff(done chan struct{}) bool {
	delay := c.cfg.ReconnectDelay
	if c.cfg.ReconnectJitter > 0 {
		delay += rand.N(c.cfg.ReconnectJitter)
	}

	c.logger.Debug("waiting before reconnect", "wait", delay)

	select {
	case <-done:
		return false
	case <-time.After(delay):
		return true
	}
}
