package exchange

// Interconnector describes one physical transmission link between two regions.
type Interconnector struct {
	// Key uniquely identifies the link.
	Key string `json:"key"`
	// FromRegion and ToRegion name the connected regions. Utilization is
	// signed from the perspective of FromRegion: positive means import into
	// FromRegion, negative means export out of it.
	FromRegion string `json:"from_region"`
	ToRegion   string `json:"to_region"`
	// RatedPowerMW is the nameplate capacity of the link.
	RatedPowerMW float64 `json:"p_mw"`
	// Scaling scales the nameplate capacity.
	Scaling float64 `json:"scaling"`
	// InService disables the link entirely when false.
	InService bool `json:"in_service"`
	// MPIPerc is the share [0,100] of capacity pre-allocated to a
	// multi-purpose interconnector schedule. Nil means unset and defaults
	// to zero during validation.
	MPIPerc *float64 `json:"mpi_perc"`
	// MPIRegion is the region the MPI allocation is referenced against.
	// Required whenever MPIPerc is positive.
	MPIRegion string `json:"mpi_region"`
}

// Capacity returns the effective capacity of the link.
func (c Interconnector) Capacity() float64 {
	if !c.InService {
		return 0
	}
	return c.RatedPowerMW * c.Scaling
}

// MPIPercentage returns the MPI share, defaulting to zero when unset.
func (c Interconnector) MPIPercentage() float64 {
	if c.MPIPerc == nil {
		return 0
	}
	return *c.MPIPerc
}

// Table is an ordered interconnector definition table.
type Table []Interconnector

// Keys returns the interconnector keys in table order.
func (t Table) Keys() []string {
	keys := make([]string, len(t))
	for i, conn := range t {
		keys[i] = conn.Key
	}
	return keys
}

// Lookup returns the interconnector stored under key.
func (t Table) Lookup(key string) (Interconnector, bool) {
	for _, conn := range t {
		if conn.Key == key {
			return conn, true
		}
	}
	return Interconnector{}, false
}

// Regions returns the unique region names referenced by the table.
func (t Table) Regions() []string {
	seen := make(map[string]bool)
	var names []string
	for _, conn := range t {
		for _, name := range []string{conn.FromRegion, conn.ToRegion} {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
