package relink

import (
	"log/slog"
	"sync"
	"time"
)

// heartbeat emits a liveness probe on a fixed interval while running. Probe
// failures are logged and non-fatal; reconnection is driven by the transport
// close, never by a failed probe.
type heartbeat struct {
	interval time.Duration
	probe    func() error
	logger   *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
}

func newHeartbeat(interval time.Duration, probe func() error, logger *slog.Logger) *heartbeat {
	return &heartbeat{
		interval: interval,
		probe:    probe,
		logger:   logger,
	}
}

// Start arms the probe ticker. Any previous ticker is canceled first, so a
// reconnect never leaves a stray probe loop from an earlier epoch.
func (h *heartbeat) Start() {
	h.mu.Lock()
	if h.stop != nil {
		close(h.stop)
	}
	h.stop = make(chan struct{})
	stop := h.stop
	h.mu.Unlock()

	go h.loop(stop)
}

// Stop cancels the probe ticker. Safe to call repeatedly.
func (h *heartbeat) Stop() {
	h.mu.Lock()
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
	h.mu.Unlock()
}

func (h *heartbeat) loop(stop chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := h.probe(); err != nil {
				h.logger.Warn("heartbeat probe failed", "error", err)
			}
		}
	}
}
