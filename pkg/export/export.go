// Package export writes hourly frames to CSV or JSON for downstream
// analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/jwiersma/interflow/core/hourly"
)

// WriteJSON writes the frame to w as a key to curve mapping.
func WriteJSON(w io.Writer, frame *hourly.Frame) error {
	out := make(map[string][]float64, frame.Len())
	for _, key := range frame.Keys() {
		out[key] = frame.Column(key)
	}
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

// WriteCSV writes the frame to w with a header row and one row per hour.
func WriteCSV(w io.Writer, frame *hourly.Frame) error {
	cw := csv.NewWriter(w)
	keys := frame.Keys()
	if err := cw.Write(keys); err != nil {
		return err
	}

	columns := make([]hourly.Series, len(keys))
	for i, key := range keys {
		columns[i] = frame.Column(key)
	}

	record := make([]string, len(keys))
	for h := 0; h < hourly.Hours; h++ {
		for i := range keys {
			record[i] = strconv.FormatFloat(columns[i][h], 'f', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
