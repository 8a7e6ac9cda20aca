package delivery

import (
	"context"
	"sync"
)

// Gate blocks delivery attempts while network connectivity is absent.
type Gate interface {
	Wait(ctx context.Context) error
}

// Monitor is a Gate driven by explicit connectivity transitions. Waiters
// park on a channel rather than polling; SetOnline(true) releases all of
// them at once. A new Monitor starts online.
type Monitor struct {
	mu     sync.Mutex
	online bool
	ready  chan struct{}
}

func NewMonitor() *Monitor {
	m := &Monitor{online: true, ready: make(chan struct{})}
	close(m.ready)
	return m
}

// SetOnline records a connectivity transition. Going online releases every
// blocked waiter; going offline makes subsequent Wait calls block.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if online == m.online {
		return
	}
	m.online = online
	if online {
		close(m.ready)
	} else {
		m.ready = make(chan struct{})
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Wait blocks until connectivity is available or ctx is done.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	ready := m.ready
	m.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
