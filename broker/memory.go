package broker

import (
	"context"
	"sync"
)

var _ Publisher = &MemoryBroker{}
var _ Consumer = &MemoryBroker{}

// MemoryBroker is an in-process push broker for tests and single-node runs.
// Slow consumers have updates dropped rather than blocking the publisher,
// matching the at-most-once, eventually-consistent contract of the real
// brokers.
type MemoryBroker struct {
	mu        sync.RWMutex
	consumers map[string]map[chan *Update]struct{}
	closed    bool
}

// NewMemoryBroker returns an in-memory push broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		consumers: make(map[string]map[chan *Update]struct{}),
	}
}

// Close closes every consumer channel
func (m *MemoryBroker) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, subs := range m.consumers {
		for ch := range subs {
			close(ch)
		}
	}
	m.consumers = make(map[string]map[chan *Update]struct{})
}

// PublishUpdate delivers to every session of the target user without blocking
func (m *MemoryBroker) PublishUpdate(u *Update) error {
	if err := u.Validate(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil
	}
	for ch := range m.consumers[u.UserID] {
		select {
		case ch <- u:
		default:
			// consumer is not keeping up, drop
		}
	}
	return nil
}

// ReceiveUpdates registers a session channel for the user, removed when ctx ends
func (m *MemoryBroker) ReceiveUpdates(ctx context.Context, userID string) (<-chan *Update, error) {
	ch := make(chan *Update, 16)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if m.consumers[userID] == nil {
		m.consumers[userID] = make(map[chan *Update]struct{})
	}
	m.consumers[userID][ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if subs, ok := m.consumers[userID]; ok {
			if _, live := subs[ch]; live {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(m.consumers, userID)
			}
		}
	}()

	return ch, nil
}
