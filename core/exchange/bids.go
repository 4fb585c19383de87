package exchange

import (
	"math"

	"github.com/jwiersma/interflow/core/hourly"
)

// Orientation names the exchange direction of an interconnector, reasoned
// from its from region. A non-negative price delta signals import, a negative
// delta export.
type Orientation string

const (
	OrientImport Orientation = "import"
	OrientExport Orientation = "export"
)

// Bid is the exchange potential of the winning interconnector at one hour.
// An empty Node means no interconnector carries a price signal that hour.
type Bid struct {
	// Node is the key of the winning interconnector.
	Node string
	// ImportRegion and ExportRegion assign the endpoints by delta sign.
	ImportRegion string
	ExportRegion string
	// Orient is the exchange direction reasoned from the from region.
	Orient Orientation
	// NetworkUtil is the standing utilization of the interconnector.
	NetworkUtil float64
	// NetworkMW is the available headroom at the signaled orientation.
	NetworkMW float64
	// SupplyMW is the surplus of the exporting region's next dispatchable
	// unit.
	SupplyMW float64
	// DemandMW is the displaceable output of the importing region's price
	// setting unit.
	DemandMW float64
	// PriceDelta is the absolute price difference, rounded to two
	// decimals.
	PriceDelta float64
}

// Result extends a bid with the cleared exchange volume. NetworkUtil holds
// the updated utilization fraction after the exchange.
type Result struct {
	Bid
	// ExchangeMW is the exchanged volume, positive for import orientation
	// and negative for export.
	ExchangeMW float64
}

// InterconnectorPriceDeltas returns the hourly price difference between the
// from and to region of every interconnector. A delta is suppressed to zero
// when dispatching the next unit at the signaled side would negate it; no
// welfare is realizable from exchange at such hours.
func (m *Market) InterconnectorPriceDeltas() *hourly.Frame {
	prices := m.ElectricityPrices()
	dispatch := m.NextDispatchablePrices()

	out := hourly.NewFrame()
	for _, conn := range m.interconnectors {
		frm := prices.Column(conn.FromRegion)
		to := prices.Column(conn.ToRegion)
		frmNext := dispatch.Column(conn.FromRegion)
		toNext := dispatch.Column(conn.ToRegion)

		deltas := hourly.Zeros()
		for h := 0; h < hourly.Hours; h++ {
			delta := frm[h] - to[h]

			// price delta at the next dispatchable unit of the
			// signaled side
			var signal float64
			if delta >= 0 {
				signal = frm[h] - toNext[h]
			} else {
				signal = frmNext[h] - to[h]
			}

			if math.Abs(delta-signal) <= math.Abs(delta) {
				deltas[h] = delta
			}
		}
		out.Set(conn.Key, deltas.DropSignedZero())
	}
	return out
}

// maskedPriceDeltas zeroes price signals without physical headroom at their
// signaled orientation.
func (m *Market) maskedPriceDeltas() *hourly.Frame {
	deltas := m.InterconnectorPriceDeltas()
	capacity := m.AvailableInterconnectorCapacity()

	out := hourly.NewFrame()
	for _, key := range deltas.Keys() {
		col := deltas.Column(key).Clone()
		imp := capacity.Import.Column(key)
		exp := capacity.Export.Column(key)
		for h, delta := range col {
			if delta >= 0 && imp[h] <= 0 {
				col[h] = 0
			}
			if delta < 0 && exp[h] <= 0 {
				col[h] = 0
			}
		}
		out.Set(key, col.DropSignedZero())
	}
	return out
}

// ExchangeBids selects, per hour, the interconnector with the largest
// surviving absolute price delta and evaluates its exchange potential: the
// available network headroom, the exporting region's supply surplus and the
// importing region's displaceable demand. Only one interconnector clears per
// hour; hours where every delta is suppressed yield an empty bid.
func (m *Market) ExchangeBids() []Bid {
	deltas := m.maskedPriceDeltas()
	capacity := m.AvailableInterconnectorCapacity()
	utilization := m.InterconnectorUtilization()
	supply := m.NextDispatchableCapacities()
	demand := m.PriceSettingCapacities()

	winners := deltas.ArgMaxAbs()
	winningDeltas := deltas.Lookup(winners)
	bids := make([]Bid, hourly.Hours)

	for h := 0; h < hourly.Hours; h++ {
		node := winners[h]
		if node == "" {
			continue
		}
		delta := winningDeltas[h]
		if delta == 0 {
			continue
		}
		conn, _ := m.interconnectors.Lookup(node)

		bid := Bid{Node: node, NetworkUtil: utilization.Column(node)[h]}
		if delta <= 0 {
			bid.ImportRegion = conn.ToRegion
			bid.ExportRegion = conn.FromRegion
		} else {
			bid.ImportRegion = conn.FromRegion
			bid.ExportRegion = conn.ToRegion
		}
		if delta >= 0 {
			bid.Orient = OrientImport
			bid.NetworkMW = capacity.Import.Column(node)[h]
		} else {
			bid.Orient = OrientExport
			bid.NetworkMW = capacity.Export.Column(node)[h]
		}
		bid.SupplyMW = supply.Column(bid.ExportRegion)[h]
		bid.DemandMW = demand.Column(bid.ImportRegion)[h]
		bid.PriceDelta = hourly.Round(math.Abs(delta), 2)

		bids[h] = bid
	}
	return bids
}

// ExchangeResults clears the bids: the exchanged volume is the minimum of the
// network headroom, the supply surplus and the displaceable demand, signed by
// orientation. The winning interconnector's utilization fraction is advanced
// by the exchanged share of its full capacity.
func (m *Market) ExchangeResults() []Result {
	bids := m.ExchangeBids()
	capacity := m.InterconnectorCapacity()

	results := make([]Result, len(bids))
	for h, bid := range bids {
		results[h] = Result{Bid: bid}
		if bid.Node == "" {
			continue
		}

		volume := math.Min(bid.NetworkMW, math.Min(bid.SupplyMW, bid.DemandMW))
		if bid.Orient == OrientExport {
			volume = -volume
		}

		results[h].ExchangeMW = volume
		if full := capacity[bid.Node]; full > 0 {
			results[h].NetworkUtil = bid.NetworkUtil + volume/full
		}
	}
	return results
}

// updatedUtilization pivots the winning interconnector's updated utilization
// onto the full interconnector-hour matrix. Non-winning cells keep their
// prior utilization.
func (m *Market) updatedUtilization(results []Result) *hourly.Frame {
	utilization := m.InterconnectorUtilization().Clone()
	for h, result := range results {
		if result.Node == "" {
			continue
		}
		utilization.Column(result.Node)[h] = result.NetworkUtil
	}
	return utilization
}

// UpdatedInterconnectorUtilization computes the clearing and returns the
// resulting utilization per interconnector.
func (m *Market) UpdatedInterconnectorUtilization() *hourly.Frame {
	return m.updatedUtilization(m.ExchangeResults())
}
