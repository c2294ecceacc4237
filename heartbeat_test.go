package relink

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestHeartbeat_ProbesOnInterval(t *testing.T) {
	var probes atomic.Int64
	h := newHeartbeat(10*time.Millisecond, func() error {
		probes.Add(1)
		return nil
	}, discardLogger())

	h.Start()
	defer h.Stop()

	time.Sleep(55 * time.Millisecond)

	if n := probes.Load(); n < 3 {
		t.Errorf("probes = %d, want at least 3", n)
	}
}

func TestHeartbeat_StopEndsProbing(t *testing.T) {
	var probes atomic.Int64
	h := newHeartbeat(10*time.Millisecond, func() error {
		probes.Add(1)
		return nil
	}, discardLogger())

	h.Start()
	time.Sleep(25 * time.Millisecond)
	h.Stop()

	n := probes.Load()
	time.Sleep(40 * time.Millisecond)

	if after := probes.Load(); after != n {
		t.Errorf("probes after Stop = %d, want %d", after, n)
	}

	// Stop again is a no-op.
	h.Stop()
}

func TestHeartbeat_RestartCancelsPreviousEpoch(t *testing.T) {
	var probes atomic.Int64
	h := newHeartbeat(10*time.Millisecond, func() error {
		probes.Add(1)
		return nil
	}, discardLogger())

	h.Start()
	h.Start()
	h.Start()
	defer h.Stop()

	time.Sleep(55 * time.Millisecond)

	// With stale tickers canceled the rate stays that of a single loop.
	if n := probes.Load(); n > 8 {
		t.Errorf("probes = %d, want single-loop rate (<= 8)", n)
	}
}

func TestHeartbeat_ProbeFailureNonFatal(t *testing.T) {
	var probes atomic.Int64
	h := newHeartbeat(10*time.Millisecond, func() error {
		probes.Add(1)
		return errors.New("probe write failed")
	}, discardLogger())

	h.Start()
	defer h.Stop()

	time.Sleep(35 * time.Millisecond)

	if n := probes.Load(); n < 2 {
		t.Errorf("probes = %d, want probing to continue past failures", n)
	}
}
