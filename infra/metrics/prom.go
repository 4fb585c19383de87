package metrics

import (
	coremetrics "github.com/jwiersma/interflow/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records clearing iterations in Prometheus metrics.
type PromSink struct {
	iterations *prometheus.CounterVec
	exchanged  *prometheus.HistogramVec
	delta      *prometheus.GaugeVec
	duration   *prometheus.HistogramVec
}

// NewPromSink registers iteration metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using the
// configured port.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	iterations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_iterations_total",
		Help: "Total number of completed clearing iterations",
	}, []string{"market"})
	exchanged := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exchange_volume_mw",
		Help:    "Total absolute exchanged volume per iteration",
		Buckets: prometheus.ExponentialBuckets(1, 10, 8),
	}, []string{"market"})
	delta := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "exchange_max_price_delta",
		Help: "Largest cleared price delta of the last iteration",
	}, []string{"market"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exchange_iteration_duration_seconds",
		Help:    "Wall time of one clearing iteration",
		Buckets: prometheus.DefBuckets,
	}, []string{"market"})

	for _, c := range []prometheus.Collector{iterations, exchanged, delta, duration} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return &PromSink{
		iterations: iterations,
		exchanged:  exchanged,
		delta:      delta,
		duration:   duration,
	}, nil
}

// RecordIteration updates the Prometheus metrics with the iteration result.
func (s *PromSink) RecordIteration(res coremetrics.IterationResult) error {
	s.iterations.WithLabelValues(res.Market).Inc()
	s.exchanged.WithLabelValues(res.Market).Observe(res.ExchangedMW)
	s.delta.WithLabelValues(res.Market).Set(res.MaxPriceDelta)
	s.duration.WithLabelValues(res.Market).Observe(res.Duration.Seconds())
	return nil
}
