package relink

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Result is the single outcome of a request: a response payload or an error,
// never both.
type Result struct {
	Payload json.RawMessage
	Err     error
}

// Future delivers the outcome of a Send exactly once.
type Future struct {
	ch chan Result
}

// Done returns a channel that yields the outcome. The outcome can be
// received once.
func (f *Future) Done() <-chan Result {
	return f.ch
}

// Wait blocks until the outcome arrives or ctx is canceled.
func (f *Future) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case r := <-f.ch:
		return r.Payload, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// pendingRequest is one in-flight request slot with its deadline timer.
type pendingRequest struct {
	fut   *Future
	timer *time.Timer
}

// Store tracks in-flight requests awaiting a correlated response. Each id
// receives at most one outcome; a removed id can never be resolved again.
type Store struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewStore creates an empty correlation store.
func NewStore() *Store {
	return &Store{
		pending: make(map[string]*pendingRequest),
	}
}

// Register creates a pending slot for id with a deadline of ttl and returns
// its future. When the deadline elapses before any other outcome, the slot
// is rejected with ErrTimeout.
func (s *Store) Register(id string, ttl time.Duration) *Future {
	fut := &Future{ch: make(chan Result, 1)}

	s.mu.Lock()
	s.pending[id] = &pendingRequest{
		fut:   fut,
		timer: time.AfterFunc(ttl, func() { s.expire(id) }),
	}
	s.mu.Unlock()

	return fut
}

// Resolve delivers a success payload to id. Returns false if id is unknown
// (already resolved, expired, or never registered).
func (s *Store) Resolve(id string, payload json.RawMessage) bool {
	req := s.take(id)
	if req == nil {
		return false
	}
	req.timer.Stop()
	req.fut.ch <- Result{Payload: payload}
	return true
}

// Reject delivers a failure to id. Returns false if id is unknown.
func (s *Store) Reject(id string, err error) bool {
	req := s.take(id)
	if req == nil {
		return false
	}
	req.timer.Stop()
	req.fut.ch <- Result{Err: err}
	return true
}

// RejectAll fails every pending request with err. Used on disconnect.
func (s *Store) RejectAll(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]*pendingRequest)
	s.mu.Unlock()

	for _, req := range pending {
		req.timer.Stop()
		req.fut.ch <- Result{Err: err}
	}
}

// Len returns the number of pending requests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// expire rejects id with ErrTimeout when its deadline fires. A no-op if the
// slot already received an outcome.
func (s *Store) expire(id string) {
	req := s.take(id)
	if req == nil {
		return
	}
	req.fut.ch <- Result{Err: ErrTimeout}
}

// take removes and returns the slot for id, or nil if absent.
func (s *Store) take(id string) *pendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pending[id]
	if !ok {
		return nil
	}
	delete(s.pending, id)
	return req
}
