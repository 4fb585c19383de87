package exchange

import (
	"math"
	"sort"

	"github.com/jwiersma/interflow/core/hourly"
	"github.com/jwiersma/interflow/core/logger"
)

// ValidateInterconnectors normalizes and validates the interconnector table
// against the region to scenario mapping. Rows referencing unknown regions or
// without effective capacity are dropped with a warning. Structural defects
// raise a ValidationError.
func ValidateInterconnectors(table Table, scenarios map[string]string, log logger.Logger) (Table, error) {
	table = fillMPIPercentage(table)
	table = dropUnknownRegions(table, scenarios, log)
	table = dropUnpowered(table, log)

	if err := checkSelfLoops(table); err != nil {
		return nil, err
	}
	if err := checkDuplicatePairs(table); err != nil {
		return nil, err
	}
	if err := checkMPIRegions(table); err != nil {
		return nil, err
	}
	if err := checkMPIPercentages(table); err != nil {
		return nil, err
	}
	return table, nil
}

// fillMPIPercentage defaults unset MPI percentages to zero.
func fillMPIPercentage(table Table) Table {
	out := make(Table, len(table))
	for i, conn := range table {
		if conn.MPIPerc == nil {
			zero := 0.0
			conn.MPIPerc = &zero
		}
		out[i] = conn
	}
	return out
}

// dropUnknownRegions removes interconnectors referencing regions without a
// scenario id.
func dropUnknownRegions(table Table, scenarios map[string]string, log logger.Logger) Table {
	missing := make(map[string]bool)
	for _, name := range table.Regions() {
		if _, ok := scenarios[name]; !ok {
			missing[name] = true
		}
	}
	for _, name := range sortedKeys(missing) {
		log.Warnf("scenario_id for '%s' missing", name)
	}

	out := make(Table, 0, len(table))
	for _, conn := range table {
		if missing[conn.FromRegion] || missing[conn.ToRegion] {
			continue
		}
		out = append(out, conn)
	}
	return out
}

// dropUnpowered removes interconnectors without effective capacity.
func dropUnpowered(table Table, log logger.Logger) Table {
	out := make(Table, 0, len(table))
	for _, conn := range table {
		if conn.RatedPowerMW > 0 && conn.Scaling > 0 && conn.InService {
			out = append(out, conn)
			continue
		}
		log.Warnf("interconnector '%s' is not powered", conn.Key)
	}
	return out
}

func checkSelfLoops(table Table) error {
	for _, conn := range table {
		if conn.FromRegion == conn.ToRegion {
			return validationErrorf(
				"same from and to region for '%s'", conn.Key)
		}
	}
	return nil
}

func checkDuplicatePairs(table Table) error {
	seen := make(map[[2]string]string)
	for _, conn := range table {
		pair := [2]string{conn.FromRegion, conn.ToRegion}
		if pair[0] > pair[1] {
			pair[0], pair[1] = pair[1], pair[0]
		}
		if first, ok := seen[pair]; ok {
			return validationErrorf(
				"duplicate entry for region pair of '%s' and '%s'", first, conn.Key)
		}
		seen[pair] = conn.Key
	}
	return nil
}

// checkMPIRegions verifies that every MPI-enabled interconnector references
// one of its own endpoints as MPI region.
func checkMPIRegions(table Table) error {
	for _, conn := range table {
		if conn.MPIPercentage() <= 0 {
			continue
		}
		if conn.MPIRegion != conn.FromRegion && conn.MPIRegion != conn.ToRegion {
			return validationErrorf(
				"invalid mpi_region for interconnector '%s'", conn.Key)
		}
	}
	return nil
}

func checkMPIPercentages(table Table) error {
	for _, conn := range table {
		if perc := conn.MPIPercentage(); perc < 0 || perc > 100 {
			return validationErrorf(
				"mpi percentage of '%s' outside range [0-100]", conn.Key)
		}
	}
	return nil
}

// ValidateScenarioIDs drops regions without any remaining interconnector from
// the scenario mapping, with a warning per dropped region.
func ValidateScenarioIDs(scenarios map[string]string, table Table, log logger.Logger) map[string]string {
	connected := make(map[string]bool)
	for _, name := range table.Regions() {
		connected[name] = true
	}

	out := make(map[string]string, len(scenarios))
	var missing []string
	for name, id := range scenarios {
		if connected[name] {
			out[name] = id
			continue
		}
		missing = append(missing, name)
	}

	sort.Strings(missing)
	for _, name := range missing {
		log.Warnf("no interconnection with '%s'", name)
	}
	return out
}

// ValidateMPIProfiles validates and orients the MPI utilization profiles. The
// returned frame has one column per interconnector in table order, oriented
// positive when the MPI region is the from region and negative otherwise.
// Interconnectors without MPI allocation get a zero column. The result is a
// fixed point: validating an already oriented frame yields the same frame.
func ValidateMPIProfiles(profiles *hourly.Frame, table Table, log logger.Logger) (*hourly.Frame, error) {
	if profiles == nil {
		profiles = hourly.NewFrame()
	}

	cleaned, err := checkProfileColumns(profiles, table, log)
	if err != nil {
		return nil, err
	}
	if err := checkProfileRanges(cleaned); err != nil {
		return nil, err
	}

	// default zero profile per interconnector, updated with validated input
	out := hourly.ZeroFrame(table.Keys())
	out.Update(cleaned)

	for _, conn := range table {
		orient := 1.0
		if conn.FromRegion != conn.MPIRegion {
			orient = -1.0
		}
		col := out.Column(conn.Key)
		for h, v := range col {
			col[h] = math.Abs(v) * orient
		}
		out.Set(conn.Key, col.DropSignedZero())
	}
	return out, nil
}

// checkProfileColumns matches profile columns against MPI-enabled
// interconnectors in both directions.
func checkProfileColumns(profiles *hourly.Frame, table Table, log logger.Logger) (*hourly.Frame, error) {
	enabled := make(map[string]bool)
	for _, conn := range table {
		if conn.MPIPercentage() > 0 {
			enabled[conn.Key] = true
		}
	}

	for _, conn := range table {
		if enabled[conn.Key] && !profiles.Has(conn.Key) {
			return nil, validationErrorf("mpi_profile missing for '%s'", conn.Key)
		}
	}

	cleaned := profiles.Clone()
	for _, key := range profiles.Keys() {
		if _, ok := table.Lookup(key); !ok {
			log.Warnf("dropped mpi_profile '%s'", key)
			cleaned.Drop(key)
		}
	}

	for _, key := range cleaned.Keys() {
		if !enabled[key] {
			return nil, validationErrorf("mpi_perc missing for '%s'", key)
		}
	}
	return cleaned, nil
}

// checkProfileRanges verifies that profile magnitudes stay within [0,1].
// Oriented profiles carry a sign, so the magnitude is checked.
func checkProfileRanges(profiles *hourly.Frame) error {
	for _, key := range profiles.Keys() {
		for _, v := range profiles.Column(key) {
			if math.Abs(v) > 1 || math.IsNaN(v) {
				return validationErrorf(
					"mpi profile for '%s' contains values outside range [0-1]", key)
			}
		}
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
