package hub

import (
	"context"
	"log/slog"
	"sync"

	"dlt-bridge-server/domain"
	"dlt-bridge-server/metrics"
	"dlt-bridge-server/relay"
)

// Hub is the registry of live consumers and the broadcast loop that
// fans queued frames out to them. Delivery is best-effort: a frame
// goes to whoever is registered when it is popped, and is gone
// afterwards.
type Hub struct {
	mu        sync.RWMutex
	consumers map[string]domain.Consumer
	metrics   *metrics.Metrics
}

func New(m *metrics.Metrics) *Hub {
	return &Hub{
		consumers: make(map[string]domain.Consumer),
		metrics:   m,
	}
}

func (h *Hub) Register(c domain.Consumer) {
	h.mu.Lock()
	h.consumers[c.ID()] = c
	count := len(h.consumers)
	h.mu.Unlock()

	h.metrics.Consumers.Set(float64(count))
	slog.Info("consumer connected", "consumerId", c.ID(), "consumers", count)
}

func (h *Hub) Unregister(c domain.Consumer) {
	h.mu.Lock()
	_, exists := h.consumers[c.ID()]
	delete(h.consumers, c.ID())
	count := len(h.consumers)
	h.mu.Unlock()

	if !exists {
		return
	}

	h.metrics.Consumers.Set(float64(count))
	slog.Info("consumer disconnected", "consumerId", c.ID(), "consumers", count)
}

// Broadcast delivers one frame to every registered consumer. Failed
// consumers are unregistered; the rest still receive the frame. With
// no consumers registered the frame is dropped.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.RLock()
	snapshot := make([]domain.Consumer, 0, len(h.consumers))
	for _, c := range h.consumers {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	if len(snapshot) == 0 {
		h.metrics.FramesDropped.WithLabelValues(metrics.DropNoConsumers).Inc()
		return
	}

	for _, c := range snapshot {
		if err := c.Send(frame); err != nil {
			h.metrics.DeliveryFailures.Inc()
			slog.Warn("delivery failed", "consumerId", c.ID(), "error", err)
			h.Unregister(c)
		}
	}
	h.metrics.FramesBroadcast.Inc()
}

// Run drains the queue until ctx is cancelled, broadcasting each frame
// as it arrives.
func (h *Hub) Run(ctx context.Context, q *relay.Queue) error {
	for {
		frame, err := q.Pop(ctx)
		if err != nil {
			return err
		}
		h.Broadcast(frame)
	}
}

func (h *Hub) Stats() (consumers int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.consumers)
}
