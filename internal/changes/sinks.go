// Package changes provides the sinks that receive committed change events.
package changes

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"linkcore/pkg/domain"
)

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Publish appends a copy of event.
func (r *Recorder) Publish(_ context.Context, event domain.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.Clone())
}

// Events returns copies of the recorded events in publish order.
func (r *Recorder) Events() []domain.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChangeEvent, len(r.events))
	for i, e := range r.events {
		out[i] = e.Clone()
	}
	return out
}

// Hub fans events out to in-process subscribers. Delivery never blocks the
// publisher: a subscriber whose buffer is full misses the event and the drop
// is logged.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.ChangeEvent
	next   int
	logger *zap.Logger
}

// NewHub returns a hub that logs dropped deliveries to logger.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[int]chan domain.ChangeEvent), logger: logger}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unregisters it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan domain.ChangeEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.ChangeEvent, buffer)
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers a copy of event to every subscriber.
func (h *Hub) Publish(_ context.Context, event domain.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- event.Clone():
		default:
			h.logger.Warn("change subscriber full, event dropped", zap.Int("subscriber", id))
		}
	}
}

// Multi publishes to each sink in order.
type Multi []domain.ChangeSink

// Publish forwards event to every sink.
func (m Multi) Publish(ctx context.Context, event domain.ChangeEvent) {
	for _, sink := range m {
		if sink != nil {
			sink.Publish(ctx, event)
		}
	}
}
