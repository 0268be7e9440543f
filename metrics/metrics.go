// Package metrics exposes Prometheus collectors for the payment pipeline,
// fed by the registry's event bus and the relay loop's tick hook.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/evvm/relay/fisher"
)

// Metrics holds the pipeline's collectors.
type Metrics struct {
	received  prometheus.Counter
	completed prometheus.Counter
	failed    prometheus.Counter
	tick      prometheus.Histogram
}

// New registers the collectors with reg and subscribes to the registry's
// lifecycle events. The pending-payments gauge reads the registry directly.
func New(reg prometheus.Registerer, f *fisher.Fisher) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		received: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_payments_received_total",
			Help: "Payments accepted at intake.",
		}),
		completed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_payments_completed_total",
			Help: "Payments confirmed on chain.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_payments_failed_total",
			Help: "Payments that reached the failed state.",
		}),
		tick: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_tick_duration_seconds",
			Help:    "Duration of relay loop processing passes.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_payments_pending",
		Help: "Payments currently waiting for relay.",
	}, func() float64 {
		return float64(f.Stats().Pending)
	})

	f.Subscribe(func(e fisher.Event) {
		switch e.Type {
		case fisher.EventPaymentReceived:
			m.received.Inc()
		case fisher.EventPaymentExecuted:
			m.completed.Inc()
		case fisher.EventPaymentFailed:
			m.failed.Inc()
		}
	})

	return m
}

// ObserveTick records one relay loop pass. Shaped to match the relayer's
// OnTick hook.
func (m *Metrics) ObserveTick(d time.Duration, processed int) {
	m.tick.Observe(d.Seconds())
}
