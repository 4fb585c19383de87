package metrics

import (
	"errors"

	coremetrics "github.com/jwiersma/interflow/core/metrics"
)

// MultiSink fans every iteration result out to multiple sinks.
type MultiSink struct {
	sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a sink wrapping the given sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// RecordIteration forwards the result to every sink, collecting errors.
func (m *MultiSink) RecordIteration(res coremetrics.IterationResult) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.RecordIteration(res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
