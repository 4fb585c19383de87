package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jwiersma/interflow/core/hourly"
)

// LoadMPIProfiles reads an MPI utilization profile table from a
// semicolon-delimited, comma-decimal CSV file. The header row names the
// interconnector keys; every column must hold one value per hour of the
// year. An empty path yields nil.
func LoadMPIProfiles(path string) (*hourly.Frame, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mpi profiles: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read mpi profiles: %w", err)
	}
	if len(records) != hourly.Hours+1 {
		return nil, fmt.Errorf(
			"mpi profiles: expected header and %d rows, got %d rows", hourly.Hours, len(records)-1)
	}

	header := records[0]
	columns := make([][]float64, len(header))
	for i := range columns {
		columns[i] = make([]float64, hourly.Hours)
	}

	for row, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("mpi profiles: row %d has %d fields, expected %d",
				row+1, len(record), len(header))
		}
		for col, field := range record {
			v, err := strconv.ParseFloat(strings.ReplaceAll(field, ",", "."), 64)
			if err != nil {
				return nil, fmt.Errorf("mpi profiles: row %d column '%s': %w",
					row+1, header[col], err)
			}
			columns[col][row] = v
		}
	}

	out := hourly.NewFrame()
	for i, key := range header {
		out.Set(key, hourly.Series(columns[i]))
	}
	return out, nil
}
