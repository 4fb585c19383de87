package exchange

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jwiersma/interflow/core/hourly"
)

// traceKinds are the per-iteration diagnostic traces written per market.
var traceKinds = []string{"prices", "utilization", "difference", "consistency"}

// TraceWriter appends per-iteration diagnostic traces to disk. Every series
// key gets its own semicolon-delimited, comma-decimal CSV file holding one
// transposed row per clearing iteration.
type TraceWriter struct {
	basedir string
}

// NewTraceWriter prepares the trace directories under <wdir>/<name>. With
// reset, pre-existing traces are removed first.
func NewTraceWriter(wdir, name string, reset bool) (*TraceWriter, error) {
	basedir := filepath.Join(wdir, name)
	for _, kind := range traceKinds {
		dir := filepath.Join(basedir, kind)
		if reset {
			if err := os.RemoveAll(dir); err != nil {
				return nil, fmt.Errorf("remove trace dir: %w", err)
			}
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create trace dir: %w", err)
		}
	}
	return &TraceWriter{basedir: basedir}, nil
}

// Append writes one row per frame column to the trace files of the given
// kind, creating files on first use.
func (w *TraceWriter) Append(kind string, frame *hourly.Frame) error {
	for _, key := range frame.Keys() {
		path := filepath.Join(w.basedir, kind, key+".csv")
		if err := appendRow(path, frame.Column(key)); err != nil {
			return fmt.Errorf("append trace %s/%s: %w", kind, key, err)
		}
	}
	return nil
}

func appendRow(path string, values hourly.Series) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = formatDecimal(v)
	}
	if _, err := file.WriteString(strings.Join(fields, ";") + "\n"); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// formatDecimal renders a float with a comma as decimal separator.
func formatDecimal(v float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(v, 'f', -1, 64), ".", ",")
}
