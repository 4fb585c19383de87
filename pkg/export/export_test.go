package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/jwiersma/interflow/core/hourly"
)

func testFrame() *hourly.Frame {
	frame := hourly.NewFrame()
	frame.Set("nl_de", hourly.Fill(0.5))
	frame.Set("nl_be", hourly.Fill(-1))
	return frame
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testFrame()); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != hourly.Hours+1 {
		t.Fatalf("expected header and %d rows, got %d", hourly.Hours, len(records))
	}
	if records[0][0] != "nl_de" || records[0][1] != "nl_be" {
		t.Errorf("unexpected header %v", records[0])
	}
	if records[1][0] != "0.5" || records[1][1] != "-1" {
		t.Errorf("unexpected first row %v", records[1])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, testFrame()); err != nil {
		t.Fatalf("write json: %v", err)
	}

	var out map[string][]float64
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 curves got %d", len(out))
	}
	if len(out["nl_de"]) != hourly.Hours || out["nl_de"][0] != 0.5 {
		t.Errorf("unexpected nl_de curve")
	}
}
