package exchange

import (
	"regexp"
	"sort"
)

// BidRung is one dispatchable unit on a region's bid ladder.
type BidRung struct {
	Key           string
	MarginalCosts float64
	// Capacity is the installed capacity of the unit, the product of
	// availability, number of units and output capacity per unit.
	Capacity float64
}

// BidLadder orders the dispatchable units of a region by ascending marginal
// cost. It is fetched once per region and kept over all iterations.
type BidLadder []BidRung

// NewBidLadder builds a ladder from raw dispatchable participants. Units whose
// key matches exclude are left off the ladder; a nil pattern keeps every unit.
func NewBidLadder(units []DispatchableUnit, exclude *regexp.Regexp) BidLadder {
	ladder := make(BidLadder, 0, len(units))
	for _, unit := range units {
		if exclude != nil && exclude.MatchString(unit.Key) {
			continue
		}
		ladder = append(ladder, BidRung{
			Key:           unit.Key,
			MarginalCosts: unit.MarginalCosts,
			Capacity:      unit.Availability * unit.NumberOfUnits * unit.OutputCapacityPerUnit,
		})
	}

	sort.Slice(ladder, func(i, j int) bool { return ladder[i].Key < ladder[j].Key })
	sort.SliceStable(ladder, func(i, j int) bool {
		return ladder[i].MarginalCosts < ladder[j].MarginalCosts
	})
	return ladder
}

// Keys returns the unit keys in ladder order.
func (l BidLadder) Keys() []string {
	keys := make([]string, len(l))
	for i, rung := range l {
		keys[i] = rung.Key
	}
	return keys
}
