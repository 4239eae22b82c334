package telemetry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

const subscriberBuffer = 64

// Hub fans session and health events out to UI listeners (SSE, WebSocket, CLI).
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string][]chan domain.Event // topic -> listener channels
	closed      bool
	dropped     atomic.Uint64
	metrics     *Metrics
}

var _ domain.EventPublisher = (*Hub)(nil)

func NewHub(metrics *Metrics) *Hub {
	return &Hub{
		subscribers: make(map[string][]chan domain.Event),
		metrics:     metrics,
	}
}

// Subscribe registers a listener on a topic. The returned cancel func is safe
// to call more than once and after Close.
func (h *Hub) Subscribe(topic string) (<-chan domain.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subscribers[topic] = append(h.subscribers[topic], ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(topic, ch) })
	}
}

func (h *Hub) unsubscribe(topic string, ch chan domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[topic]
	for i, sub := range subs {
		if sub == ch {
			h.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish delivers e to every listener of e.Topic without blocking. Listeners
// whose buffer is full miss the event.
func (h *Hub) Publish(_ context.Context, e domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, ch := range h.subscribers[e.Topic] {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
			h.metrics.EventDropped(e.Topic)
		}
	}
}

// Dropped returns how many deliveries were skipped because a listener lagged.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close ends every subscription. Publishing after Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for topic, subs := range h.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.subscribers, topic)
	}
}
