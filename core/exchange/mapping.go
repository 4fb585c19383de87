package exchange

import "fmt"

// mappingEntry ties one endpoint of an interconnector to the key space of that
// endpoint's remote scenario.
type mappingEntry struct {
	// Region is the endpoint the entry belongs to.
	Region string
	// LocalKey is the scenario-local interconnector key, interconnector_<n>
	// with n counting the interconnectors touching the region.
	LocalKey string
	// ConnKey is the global interconnector key.
	ConnKey string
	// Other is the region on the other side of the link.
	Other string
	// IsFrom reports whether Region is the declared from region.
	IsFrom bool
}

// connMapping is the full endpoint mapping of an interconnector table. It is
// a pure function of the table and built once per market.
type connMapping struct {
	entries  []mappingEntry
	byRegion map[string][]mappingEntry
}

// buildMapping enumerates both endpoints of every interconnector. Per region,
// links where the region is the from region are numbered first in table
// order, followed by links where it is the to region.
func buildMapping(table Table) *connMapping {
	m := &connMapping{byRegion: make(map[string][]mappingEntry)}

	add := func(region, other, connKey string, isFrom bool) {
		entry := mappingEntry{
			Region:   region,
			LocalKey: fmt.Sprintf("interconnector_%d", len(m.byRegion[region])+1),
			ConnKey:  connKey,
			Other:    other,
			IsFrom:   isFrom,
		}
		m.entries = append(m.entries, entry)
		m.byRegion[region] = append(m.byRegion[region], entry)
	}

	for _, conn := range table {
		add(conn.FromRegion, conn.ToRegion, conn.Key, true)
	}
	for _, conn := range table {
		add(conn.ToRegion, conn.FromRegion, conn.Key, false)
	}
	return m
}

// forRegion returns the entries of one region in local key order.
func (m *connMapping) forRegion(region string) []mappingEntry {
	return m.byRegion[region]
}

// fromEntry returns the from-oriented entry of an interconnector.
func (m *connMapping) fromEntry(connKey string) (mappingEntry, bool) {
	for _, entry := range m.entries {
		if entry.ConnKey == connKey && entry.IsFrom {
			return entry, true
		}
	}
	return mappingEntry{}, false
}

// entry returns the mapping entry of an interconnector endpoint.
func (m *connMapping) entry(region, connKey string) (mappingEntry, bool) {
	for _, e := range m.byRegion[region] {
		if e.ConnKey == connKey {
			return e, true
		}
	}
	return mappingEntry{}, false
}
