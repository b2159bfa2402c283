// Package connectivity tracks whether the remote service is reachable.
//
// The Monitor is passed into the sync engine and the request gateway at
// construction, replacing any global online flag. State changes come from an
// injected probe or from explicit SetOnline calls, so tests drive transitions
// directly.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Probe checks reachability of the remote service. remote.Client satisfies it.
type Probe interface {
	Ping(ctx context.Context) error
}

// Monitor holds the current online state and notifies subscribers on every
// transition.
type Monitor struct {
	probe  Probe
	logger *slog.Logger

	mu          sync.RWMutex
	online      bool
	subscribers []func(online bool)
}

// NewMonitor creates a Monitor that starts offline. Pass a nil probe to drive
// the state exclusively through SetOnline.
func NewMonitor(probe Probe, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{probe: probe, logger: logger}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline updates the state and fires subscriber callbacks when it changes.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subscribers := make([]func(bool), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "online", online)
	for _, fn := range subscribers {
		fn(online)
	}
}

// Subscribe registers a callback fired on every state transition. The
// offline-to-online transition is the reconnect trigger the sync engine
// listens for.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Check runs one probe and updates the state. Without a probe the current
// state is returned unchanged.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.probe == nil {
		return m.Online()
	}
	err := m.probe.Ping(ctx)
	if err != nil {
		m.logger.Debug("connectivity probe failed", "error", err)
	}
	m.SetOnline(err == nil)
	return m.Online()
}

// Start probes on the given interval until ctx is done.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}
