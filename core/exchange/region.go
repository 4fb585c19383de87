package exchange

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jwiersma/interflow/core/hourly"
	"github.com/jwiersma/interflow/core/logger"
)

var (
	availabilityKeyPattern = regexp.MustCompile(`^interconnector_\d{1,2}_(import|export)_availability$`)
	priceKeyPattern        = regexp.MustCompile(`^interconnector_\d{1,2}_price$`)
	capacityParamPattern   = regexp.MustCompile(`^electricity_(interconnector_\d{1,2})_capacity$`)
	localKeyPattern        = regexp.MustCompile(`^interconnector_\d{1,2}`)
)

const (
	importSuffix = "_import_availability"
	exportSuffix = "_export_availability"
	priceSuffix  = "_price"
	outputSuffix = ".output (MW)"
)

// RegionConfig carries the per-region settings derived from the
// interconnector mapping.
type RegionConfig struct {
	// Reset scrubs the remote scenario's interconnector state during
	// construction.
	Reset bool
	// LocalKeys lists the scenario-local interconnector keys of the region
	// in mapping order.
	LocalKeys []string
	// Capacities maps local keys to effective capacities, applied to the
	// remote scenario on reset.
	Capacities map[string]float64
	// CurveNames maps local keys to the display name used when uploading
	// custom curves.
	CurveNames map[string]string
	// ExcludeUnits removes matching dispatchable units from the bid
	// ladder, typically interconnector pseudo units.
	ExcludeUnits *regexp.Regexp
}

// Region wraps one remote scenario. It is unaware of the global
// interconnector key space and only deals in scenario-local keys. Expensive
// remote fetches are cached explicitly and re-warmed by CacheProperties after
// every push of new data.
type Region struct {
	name   string
	client ScenarioClient
	cfg    RegionConfig
	ladder BidLadder
	log    logger.Logger
	cache  regionCache
}

// regionCache holds remote state fetched by CacheProperties. A nil field
// means the value has not been fetched since the last invalidation.
type regionCache struct {
	curves     *hourly.Frame
	price      hourly.Series
	ccurveKeys []string
	ccurves    *hourly.Frame
	params     map[string]float64
}

// NewRegion constructs a region around the given scenario client, optionally
// resetting the remote interconnector state, and fetches the bid ladder once.
// Remote failures propagate unchanged.
func NewRegion(ctx context.Context, name string, client ScenarioClient, cfg RegionConfig, log logger.Logger) (*Region, error) {
	r := &Region{name: name, client: client, cfg: cfg, log: log}

	if cfg.Reset {
		if err := r.resetInterconnectors(ctx); err != nil {
			return nil, fmt.Errorf("reset interconnectors: %w", err)
		}
	}

	units, err := client.DispatchableUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch dispatchable units: %w", err)
	}
	r.ladder = NewBidLadder(units, cfg.ExcludeUnits)
	log.Debugf("'%s': downloaded bidladder", r)

	return r, nil
}

// Name returns the region name.
func (r *Region) Name() string {
	return r.name
}

func (r *Region) String() string {
	return strings.ToUpper(r.name)
}

// BidLadder returns the region's bid ladder, fetched once at construction.
func (r *Region) BidLadder() BidLadder {
	return r.ladder
}

// ResetCache drops all cached remote state.
func (r *Region) ResetCache() {
	r.cache = regionCache{}
}

// CacheProperties fetches all remote state used during a clearing iteration
// in one synchronous round trip.
func (r *Region) CacheProperties(ctx context.Context) error {
	keys, err := r.client.CustomCurveKeys(ctx, false)
	if err != nil {
		return err
	}

	var curveKeys []string
	for _, key := range keys {
		if availabilityKeyPattern.MatchString(key) || priceKeyPattern.MatchString(key) {
			curveKeys = append(curveKeys, key)
		}
	}
	ccurves, err := r.client.CustomCurves(ctx, curveKeys)
	if err != nil {
		return err
	}

	price, err := r.client.HourlyElectricityPriceCurve(ctx)
	if err != nil {
		return err
	}
	curves, err := r.client.HourlyElectricityCurves(ctx)
	if err != nil {
		return err
	}
	params, err := r.client.ScenarioParameters(ctx)
	if err != nil {
		return err
	}

	r.cache = regionCache{
		curves:     curves,
		price:      price,
		ccurveKeys: keys,
		ccurves:    ccurves,
		params:     params,
	}
	r.log.Debugf("'%s': cached remote properties", r)
	return nil
}

// Utilization returns the signed interconnector utilization of the region,
// one column per local key with attached availability curves. Positive values
// mean import into the region.
func (r *Region) Utilization() *hourly.Frame {
	out := hourly.NewFrame()
	for _, key := range r.cache.ccurveKeys {
		if !availabilityKeyPattern.MatchString(key) {
			continue
		}
		base := localKeyPattern.FindString(key)
		if out.Has(base) {
			continue
		}
		imprt := r.cache.ccurves.Column(base + importSuffix)
		exprt := r.cache.ccurves.Column(base + exportSuffix)
		out.Set(base, imprt.Sub(exprt))
	}
	return out
}

// SetUtilization splits the signed utilization into import and export
// availability curves and uploads them.
func (r *Region) SetUtilization(ctx context.Context, utilization *hourly.Frame) error {
	curves := hourly.NewFrame()
	var names []string

	for _, key := range utilization.Keys() {
		col := utilization.Column(key)
		imprt := hourly.Zeros()
		for h, v := range col {
			if v > 0 {
				imprt[h] = v
			}
		}
		curves.Set(key+importSuffix, imprt)
		names = append(names, r.cfg.CurveNames[key])
	}
	for _, key := range utilization.Keys() {
		col := utilization.Column(key)
		exprt := hourly.Zeros()
		for h, v := range col {
			if v < 0 {
				exprt[h] = -v
			}
		}
		curves.Set(key+exportSuffix, exprt)
		names = append(names, r.cfg.CurveNames[key])
	}

	if err := r.client.UploadCustomCurves(ctx, curves, names); err != nil {
		return err
	}
	r.log.Debugf("'%s': uploaded availability curves", r)
	return nil
}

// ExchangePrices returns the attached interconnector price curves keyed by
// local key.
func (r *Region) ExchangePrices() *hourly.Frame {
	out := hourly.NewFrame()
	for _, key := range r.cache.ccurveKeys {
		if !priceKeyPattern.MatchString(key) {
			continue
		}
		out.Set(strings.TrimSuffix(key, priceSuffix), r.cache.ccurves.Column(key))
	}
	return out
}

// SetExchangePrices uploads the given price curves per local key.
func (r *Region) SetExchangePrices(ctx context.Context, prices *hourly.Frame) error {
	curves := hourly.NewFrame()
	var names []string
	for _, key := range prices.Keys() {
		curves.Set(key+priceSuffix, prices.Column(key))
		names = append(names, r.cfg.CurveNames[key])
	}

	if err := r.client.UploadCustomCurves(ctx, curves, names); err != nil {
		return err
	}
	r.log.Debugf("'%s': uploaded exchange prices", r)
	return nil
}

// ElectricityPrice returns the cached hourly electricity price curve.
func (r *Region) ElectricityPrice() hourly.Series {
	if r.cache.price == nil {
		return hourly.Zeros()
	}
	return r.cache.price
}

// RemoteUtilization derives the utilization the remote scenario itself
// reports for every configured interconnector, as the residual of imported
// and exported electricity over the configured capacity.
func (r *Region) RemoteUtilization() *hourly.Frame {
	out := hourly.NewFrame()
	for _, key := range r.cfg.LocalKeys {
		capacity, ok := r.cache.params["electricity_"+key+"_capacity"]
		if !ok || capacity <= 0 {
			continue
		}
		imprt := r.cache.curves.Column(fmt.Sprintf("energy_%s_imported_electricity.output (MW)", key))
		exprt := r.cache.curves.Column(fmt.Sprintf("energy_%s_exported_electricity.input (MW)", key))
		out.Set(key, imprt.Sub(exprt).Scale(1/capacity))
	}
	return out
}

// DispatchableUtilization returns the per-unit utilization of the bid ladder,
// rounded to two decimals to absorb rounding noise in the merit order output.
func (r *Region) DispatchableUtilization() *hourly.Frame {
	out := hourly.NewFrame()
	for _, rung := range r.ladder {
		curve := r.cache.curves.Column(rung.Key + outputSuffix)
		if rung.Capacity > 0 {
			curve = curve.Scale(1 / rung.Capacity)
		}
		out.Set(rung.Key, curve.Round(2))
	}
	return out
}

// PriceSettingUnit returns, per hour, the most expensive dispatched unit of
// the bid ladder. Among equally utilized units the more expensive one wins;
// hours without any dispatch yield an empty key.
func (r *Region) PriceSettingUnit() []string {
	util := r.DispatchableUtilization()
	units := make([]string, hourly.Hours)

	cols := make([]hourly.Series, len(r.ladder))
	for i, rung := range r.ladder {
		cols[i] = util.Column(rung.Key)
	}

	for h := 0; h < hourly.Hours; h++ {
		best := ""
		bestVal := 0.0
		found := false
		for i := len(r.ladder) - 1; i >= 0; i-- {
			v := cols[i][h]
			if v == 0 {
				continue
			}
			if !found || v < bestVal {
				found = true
				bestVal = v
				best = r.ladder[i].Key
			}
		}
		units[h] = best
	}
	return units
}

// PriceSettingCapacity returns the dispatched output of the price setting
// unit per hour.
func (r *Region) PriceSettingCapacity() hourly.Series {
	units := r.PriceSettingUnit()
	out := hourly.Zeros()
	for h, unit := range units {
		if unit == "" {
			continue
		}
		out[h] = hourly.Round(r.cache.curves.Column(unit + outputSuffix)[h], 2)
	}
	return out
}

// PriceSettingUtilization returns the utilization of the price setting unit
// per hour.
func (r *Region) PriceSettingUtilization() hourly.Series {
	units := r.PriceSettingUnit()
	util := r.DispatchableUtilization()
	out := hourly.Zeros()
	for h, unit := range units {
		if unit == "" {
			continue
		}
		out[h] = util.Column(unit)[h]
	}
	return out
}

// nextDispatchableIndex returns, per hour, the ladder index of the cheapest
// unit that is not fully saturated, falling back to the most expensive unit
// when the whole ladder is dispatched. Returns nil for an empty ladder.
func (r *Region) nextDispatchableIndex() []int {
	if len(r.ladder) == 0 {
		return nil
	}
	util := r.DispatchableUtilization()

	cols := make([]hourly.Series, len(r.ladder))
	for i, rung := range r.ladder {
		cols[i] = util.Column(rung.Key)
	}

	out := make([]int, hourly.Hours)
	for h := 0; h < hourly.Hours; h++ {
		idx := len(r.ladder) - 1
		for i := range r.ladder {
			if cols[i][h] < 1 {
				idx = i
				break
			}
		}
		out[h] = idx
	}
	return out
}

// NextDispatchableUnit returns the key of the next dispatchable unit per hour.
func (r *Region) NextDispatchableUnit() []string {
	units := make([]string, hourly.Hours)
	for h, idx := range r.nextDispatchableIndex() {
		units[h] = r.ladder[idx].Key
	}
	return units
}

// NextDispatchablePrice returns the marginal cost of the next dispatchable
// unit per hour.
func (r *Region) NextDispatchablePrice() hourly.Series {
	out := hourly.Zeros()
	for h, idx := range r.nextDispatchableIndex() {
		out[h] = r.ladder[idx].MarginalCosts
	}
	return out
}

// NextDispatchableCapacity returns the surplus capacity of the next
// dispatchable unit per hour.
func (r *Region) NextDispatchableCapacity() hourly.Series {
	out := hourly.Zeros()
	for h, idx := range r.nextDispatchableIndex() {
		rung := r.ladder[idx]
		dispatched := hourly.Round(r.cache.curves.Column(rung.Key + outputSuffix)[h], 2)
		out[h] = hourly.Round(rung.Capacity, 2) - dispatched
	}
	return out
}

// resetInterconnectors zeroes every interconnector capacity parameter in the
// remote scenario, re-applies the configured capacities, uploads a zero
// utilization baseline for the configured set and unattaches every other
// pre-existing custom curve.
func (r *Region) resetInterconnectors(ctx context.Context) error {
	params, err := r.client.ScenarioParameters(ctx)
	if err != nil {
		return err
	}

	// zero every known interconnector capacity parameter
	update := make(map[string]float64)
	for key := range params {
		if capacityParamPattern.MatchString(key) {
			update[key] = 0
		}
	}

	capacities := make(map[string]float64)
	for key, capacity := range r.cfg.Capacities {
		if capacity > 0 {
			capacities[key] = capacity
		}
	}

	var keep map[string]bool
	if len(capacities) > 0 {
		for key, capacity := range capacities {
			update["electricity_"+key+"_capacity"] = capacity
		}
		if err := r.client.SetScenarioParameters(ctx, update); err != nil {
			return err
		}
		r.log.Debugf("'%s': uploaded capacity settings", r)

		// zero utilization baseline for the configured interconnectors
		baseline := hourly.NewFrame()
		keep = make(map[string]bool)
		for _, key := range r.cfg.LocalKeys {
			if _, ok := capacities[key]; !ok {
				continue
			}
			baseline.Set(key, hourly.Zeros())
			keep[key+importSuffix] = true
			keep[key+exportSuffix] = true
		}
		if err := r.SetUtilization(ctx, baseline); err != nil {
			return err
		}
		r.log.Debugf("'%s': uploaded initial ccurves", r)
	} else {
		if err := r.client.SetScenarioParameters(ctx, update); err != nil {
			return err
		}
		r.log.Debugf("'%s': all capacities set to zero", r)
	}

	attached, err := r.client.CustomCurveKeys(ctx, false)
	if err != nil {
		return err
	}
	var stale []string
	for _, key := range attached {
		if keep != nil && keep[key] {
			continue
		}
		stale = append(stale, key)
	}
	if len(stale) > 0 {
		if err := r.client.DeleteCustomCurves(ctx, stale); err != nil {
			return err
		}
		r.log.Debugf("'%s': deleted superfluous ccurves", r)
	}
	return nil
}
