package metrics

import "time"

// IterationResult summarises one completed market clearing iteration.
type IterationResult struct {
	Market        string
	RunID         string
	Iteration     int
	ExchangedMW   float64
	MaxPriceDelta float64
	Duration      time.Duration
	Time          time.Time
}

// MetricsSink records iteration results for observability purposes.
type MetricsSink interface {
	RecordIteration(res IterationResult) error
}

// NopSink discards all results.
type NopSink struct{}

func (NopSink) RecordIteration(IterationResult) error { return nil }
