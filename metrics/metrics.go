// Package metrics exposes the bridge's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for the frames_dropped_total counter.
const (
	DropNoConsumers   = "no_consumers"
	DropQueueOverflow = "queue_overflow"
)

type Metrics struct {
	FramesRead       prometheus.Counter
	BytesRead        prometheus.Counter
	Reconnects       prometheus.Counter
	FramesBroadcast  prometheus.Counter
	FramesDropped    *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
	Consumers        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dltbridge",
			Name:      "frames_read_total",
			Help:      "Frames read from the upstream daemon.",
		}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dltbridge",
			Name:      "bytes_read_total",
			Help:      "Frame bytes read from the upstream daemon.",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dltbridge",
			Name:      "upstream_reconnects_total",
			Help:      "Upstream connection attempts after the first.",
		}),
		FramesBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dltbridge",
			Name:      "frames_broadcast_total",
			Help:      "Frames fanned out to the consumer set.",
		}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dltbridge",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped, by reason.",
		}, []string{"reason"}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dltbridge",
			Name:      "delivery_failures_total",
			Help:      "Per-consumer send failures.",
		}),
		Consumers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dltbridge",
			Name:      "consumers_connected",
			Help:      "Currently connected consumers.",
		}),
	}
}
