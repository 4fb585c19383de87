package exchange

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwiersma/interflow/core/hourly"
	"github.com/jwiersma/interflow/core/logger"
	"github.com/jwiersma/interflow/core/metrics"
	"github.com/jwiersma/interflow/internal/eventbus"
)

// ClientFactory builds a ScenarioClient for a remote scenario id. It is
// injected at market construction so the core carries no ambient session
// state.
type ClientFactory func(scenarioID string) ScenarioClient

// MarketConfig carries the static inputs of an exchange market.
type MarketConfig struct {
	// Name labels the market and its trace directory.
	Name string
	// WorkDir is the base directory for trace output, default the working
	// directory.
	WorkDir string
	// Reset scrubs remote interconnector state and existing traces during
	// construction.
	Reset bool
	// Interconnectors is the raw interconnector definition table.
	Interconnectors Table
	// ScenarioIDs maps region names to remote scenario ids.
	ScenarioIDs map[string]string
	// MPIProfiles holds the hourly MPI utilization per MPI-enabled
	// interconnector. May be nil.
	MPIProfiles *hourly.Frame
	// ExcludeUnits removes matching units from every region's bid ladder.
	ExcludeUnits *regexp.Regexp
}

// IterationEvent is published on the event bus after every completed clearing
// iteration.
type IterationEvent struct {
	Market      string
	RunID       string
	Iteration   int
	ExchangedMW float64
}

// Market simulates iterative price-based electricity exchange between
// regional scenarios connected by interconnectors. Construction validates the
// static inputs and builds one region per scenario; ClearMarket then runs the
// fixed-point iteration.
//
// A failed iteration is logged and propagated without rollback: regions may
// already hold a partially pushed update. The market itself stays inspectable
// and ClearMarket may be retried.
type Market struct {
	name  string
	runID string
	reset bool

	interconnectors Table
	scenarioIDs     map[string]string
	mpiProfiles     *hourly.Frame
	mapping         *connMapping

	regions []*Region
	tracer  *TraceWriter
	log     logger.Logger
	sink    metrics.MetricsSink
	bus     eventbus.EventBus

	iterations  int
	lastResults []Result

	// caches invalidated after every iteration
	utilization *hourly.Frame
	available   *DirectionalCapacity
}

// DirectionalCapacity holds per-interconnector hourly headroom for both
// exchange orientations.
type DirectionalCapacity struct {
	Import *hourly.Frame
	Export *hourly.Frame
}

// NewMarket validates the configuration, builds and resets the regions and
// performs the initial remote round trip. The iteration-0 traces are written
// before the constructor returns.
func NewMarket(ctx context.Context, cfg MarketConfig, clients ClientFactory, log logger.Logger) (*Market, error) {
	if cfg.Name == "" {
		cfg.Name = "exchange"
	}
	if log == nil {
		log = noplogger{}
	}

	m := &Market{
		name:  cfg.Name,
		runID: uuid.NewString(),
		reset: cfg.Reset,
		log:   log,
		sink:  metrics.NopSink{},
	}
	log.Infof("initialising exchange market '%s'", m.name)

	if !cfg.Reset {
		log.Warnf("'%s': regions not reset on initialisation", m.name)
	}

	// interconnector and region validation is interdependent: dropping an
	// interconnector can orphan a region and vice versa. Two passes reach
	// the fixed point.
	scenarioIDs := ValidateScenarioIDs(cfg.ScenarioIDs, cfg.Interconnectors, log)
	table, err := ValidateInterconnectors(cfg.Interconnectors, scenarioIDs, log)
	if err != nil {
		return nil, err
	}
	scenarioIDs = ValidateScenarioIDs(scenarioIDs, table, log)
	profiles, err := ValidateMPIProfiles(cfg.MPIProfiles, table, log)
	if err != nil {
		return nil, err
	}

	m.interconnectors = table
	m.scenarioIDs = scenarioIDs
	m.mpiProfiles = profiles
	m.mapping = buildMapping(table)

	m.tracer, err = NewTraceWriter(cfg.WorkDir, cfg.Name, cfg.Reset)
	if err != nil {
		return nil, err
	}

	if err := m.initializeRegions(ctx, cfg, clients); err != nil {
		return nil, err
	}
	if err := m.cacheRegions(ctx); err != nil {
		return nil, err
	}
	m.refreshCaches()

	if err := m.updateTraces(); err != nil {
		return nil, err
	}

	log.Debugf("'%s': initialisation completed", m.name)
	return m, nil
}

// SetMetricsSink configures the sink receiving per-iteration results.
func (m *Market) SetMetricsSink(sink metrics.MetricsSink) {
	if sink != nil {
		m.sink = sink
	}
}

// SetEventBus configures the bus receiving iteration events.
func (m *Market) SetEventBus(bus eventbus.EventBus) {
	m.bus = bus
}

// Name returns the market name.
func (m *Market) Name() string { return m.name }

// RunID returns the unique identifier of this market instance.
func (m *Market) RunID() string { return m.runID }

// Iterations returns the number of completed clearing iterations.
func (m *Market) Iterations() int { return m.iterations }

// Regions returns the region names in region order.
func (m *Market) Regions() []string {
	names := make([]string, len(m.regions))
	for i, region := range m.regions {
		names[i] = region.Name()
	}
	return names
}

// Interconnectors returns a copy of the validated interconnector table.
func (m *Market) Interconnectors() Table {
	out := make(Table, len(m.interconnectors))
	copy(out, m.interconnectors)
	return out
}

// initializeRegions constructs one region per surviving scenario id, passing
// each its slice of the interconnector mapping.
func (m *Market) initializeRegions(ctx context.Context, cfg MarketConfig, clients ClientFactory) error {
	capacity := m.InterconnectorCapacity()

	names := make([]string, 0, len(m.scenarioIDs))
	for name := range m.scenarioIDs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m.log.Infof("'%s': initialising region '%s'", m.name, name)

		entries := m.mapping.forRegion(name)
		rcfg := RegionConfig{
			Reset:        cfg.Reset,
			LocalKeys:    make([]string, 0, len(entries)),
			Capacities:   make(map[string]float64, len(entries)),
			CurveNames:   make(map[string]string, len(entries)),
			ExcludeUnits: cfg.ExcludeUnits,
		}
		for _, entry := range entries {
			rcfg.LocalKeys = append(rcfg.LocalKeys, entry.LocalKey)
			rcfg.Capacities[entry.LocalKey] = capacity[entry.ConnKey]
			rcfg.CurveNames[entry.LocalKey] = "interconnector_" + entry.Other
		}

		region, err := NewRegion(ctx, name, clients(m.scenarioIDs[name]), rcfg, m.log)
		if err != nil {
			return fmt.Errorf("initialise region %s: %w", name, err)
		}
		m.regions = append(m.regions, region)
	}
	return nil
}

// region returns the region object for a region name.
func (m *Market) region(name string) *Region {
	for _, region := range m.regions {
		if region.Name() == name {
			return region
		}
	}
	return nil
}

// cacheRegions performs one synchronous remote round trip per region.
func (m *Market) cacheRegions(ctx context.Context) error {
	for _, region := range m.regions {
		m.log.Infof("'%s': caching region '%s'", m.name, region)
		region.ResetCache()
		if err := region.CacheProperties(ctx); err != nil {
			return fmt.Errorf("cache region %s: %w", region.Name(), err)
		}
	}
	return nil
}

// refreshCaches recomputes the memoized interconnector utilization and the
// directional headroom used by the next bid computation.
func (m *Market) refreshCaches() {
	m.utilization = m.assembleUtilization()
	m.available = m.assembleAvailableCapacity()
}

// InterconnectorCapacity returns the effective capacity per interconnector.
func (m *Market) InterconnectorCapacity() map[string]float64 {
	out := make(map[string]float64, len(m.interconnectors))
	for _, conn := range m.interconnectors {
		out[conn.Key] = conn.Capacity()
	}
	return out
}

// InterconnectorUtilization returns the signed utilization per
// interconnector, read from the from-oriented endpoint of every link. The
// frame is cached until the next iteration.
func (m *Market) InterconnectorUtilization() *hourly.Frame {
	if m.utilization == nil {
		m.utilization = m.assembleUtilization()
	}
	return m.utilization
}

func (m *Market) assembleUtilization() *hourly.Frame {
	out := hourly.NewFrame()
	for _, conn := range m.interconnectors {
		entry, ok := m.mapping.fromEntry(conn.Key)
		if !ok {
			continue
		}
		region := m.region(entry.Region)
		out.Set(conn.Key, region.Utilization().Column(entry.LocalKey))
	}
	return out
}

// RemoteInterconnectorUtilization returns the utilization the remote
// scenarios report themselves, from-oriented per interconnector.
func (m *Market) RemoteInterconnectorUtilization() *hourly.Frame {
	out := hourly.NewFrame()
	for _, conn := range m.interconnectors {
		entry, ok := m.mapping.fromEntry(conn.Key)
		if !ok {
			continue
		}
		region := m.region(entry.Region)
		out.Set(conn.Key, region.RemoteUtilization().Column(entry.LocalKey))
	}
	return out
}

// MPIUtilization returns the hourly share of capacity claimed by the MPI
// schedule per interconnector.
func (m *Market) MPIUtilization() *hourly.Frame {
	out := hourly.NewFrame()
	for _, conn := range m.interconnectors {
		profile := m.mpiProfiles.Column(conn.Key)
		out.Set(conn.Key, profile.Scale(conn.MPIPercentage()/100))
	}
	return out
}

// AvailableInterconnectorCapacity returns the remaining hourly headroom per
// interconnector for both orientations, net of current flow and MPI
// pre-allocation. Cached until the next iteration.
func (m *Market) AvailableInterconnectorCapacity() *DirectionalCapacity {
	if m.available == nil {
		m.available = m.assembleAvailableCapacity()
	}
	return m.available
}

func (m *Market) assembleAvailableCapacity() *DirectionalCapacity {
	mpi := m.MPIUtilization()
	capacity := m.InterconnectorCapacity()
	utilization := m.InterconnectorUtilization()

	imp := hourly.NewFrame()
	exp := hourly.NewFrame()
	for _, conn := range m.interconnectors {
		mpiCol := mpi.Column(conn.Key)
		util := utilization.Column(conn.Key)
		full := capacity[conn.Key]

		headroom := hourly.Fill(1).Sub(mpiCol)
		imp.Set(conn.Key, headroom.Sub(util).Scale(full))
		exp.Set(conn.Key, headroom.Add(util).Scale(full))
	}
	return &DirectionalCapacity{Import: imp, Export: exp}
}

// ElectricityPrices returns the hourly electricity price per region.
func (m *Market) ElectricityPrices() *hourly.Frame {
	out := hourly.NewFrame()
	for _, region := range m.regions {
		out.Set(region.Name(), region.ElectricityPrice())
	}
	return out
}

// PriceSettingCapacities returns the dispatched output of the price setting
// unit per region.
func (m *Market) PriceSettingCapacities() *hourly.Frame {
	out := hourly.NewFrame()
	for _, region := range m.regions {
		out.Set(region.Name(), region.PriceSettingCapacity())
	}
	return out
}

// PriceSettingUnits returns the key of the price setting unit per region and
// hour. Hours without a price setting unit carry an empty key.
func (m *Market) PriceSettingUnits() map[string][]string {
	out := make(map[string][]string, len(m.regions))
	for _, region := range m.regions {
		out[region.Name()] = region.PriceSettingUnit()
	}
	return out
}

// PriceSettingUtilization returns the utilization of the price setting unit
// per region.
func (m *Market) PriceSettingUtilization() *hourly.Frame {
	out := hourly.NewFrame()
	for _, region := range m.regions {
		out.Set(region.Name(), region.PriceSettingUtilization())
	}
	return out
}

// NextDispatchablePrices returns the marginal cost of the next dispatchable
// unit per region.
func (m *Market) NextDispatchablePrices() *hourly.Frame {
	out := hourly.NewFrame()
	for _, region := range m.regions {
		out.Set(region.Name(), region.NextDispatchablePrice())
	}
	return out
}

// NextDispatchableCapacities returns the surplus capacity of the next
// dispatchable unit per region.
func (m *Market) NextDispatchableCapacities() *hourly.Frame {
	out := hourly.NewFrame()
	for _, region := range m.regions {
		out.Set(region.Name(), region.NextDispatchableCapacity())
	}
	return out
}

// NextDispatchableUnits returns the key of the next dispatchable unit per
// region and hour.
func (m *Market) NextDispatchableUnits() map[string][]string {
	out := make(map[string][]string, len(m.regions))
	for _, region := range m.regions {
		out[region.Name()] = region.NextDispatchableUnit()
	}
	return out
}

// UtilizationDurationCurves returns every interconnector's utilization sorted
// descending, for duration curve plots and exports.
func (m *Market) UtilizationDurationCurves() *hourly.Frame {
	return m.InterconnectorUtilization().Apply(func(col hourly.Series) hourly.Series {
		out := col.Clone()
		sort.Sort(sort.Reverse(sort.Float64Slice(out)))
		return out
	})
}

// Difference returns the deviation of the model utilization from the
// remote-reported utilization per interconnector. A persistent difference
// indicates the remote scenarios have not yet converged on the pushed flows.
func (m *Market) Difference() *hourly.Frame {
	utilization := m.InterconnectorUtilization()
	remote := m.RemoteInterconnectorUtilization()

	out := hourly.NewFrame()
	for _, key := range utilization.Keys() {
		diff := utilization.Column(key).Sub(remote.Column(key))
		out.Set(key, diff.Round(3).DropSignedZero())
	}
	return out
}

// Consistency returns, per interconnector, the sum of the remote-reported
// utilization over both endpoints. Flows are signed opposite on either side,
// so a consistent pair of scenarios sums to zero.
func (m *Market) Consistency() *hourly.Frame {
	out := hourly.NewFrame()
	for _, conn := range m.interconnectors {
		frm, okFrom := m.mapping.entry(conn.FromRegion, conn.Key)
		to, okTo := m.mapping.entry(conn.ToRegion, conn.Key)
		if !okFrom || !okTo {
			continue
		}
		frmUtil := m.region(frm.Region).RemoteUtilization().Column(frm.LocalKey)
		toUtil := m.region(to.Region).RemoteUtilization().Column(to.LocalKey)
		out.Set(conn.Key, frmUtil.Add(toUtil).DropSignedZero())
	}
	return out
}

// setRegionCurves pushes each region's slice of the updated utilization and
// the exchange price curves into its remote scenario.
func (m *Market) setRegionCurves(ctx context.Context, utilization, prices *hourly.Frame) error {
	for _, region := range m.regions {
		m.log.Infof("'%s': updating region '%s'", m.name, region)

		localUtil := hourly.NewFrame()
		localPrices := hourly.NewFrame()
		for _, entry := range m.mapping.forRegion(region.Name()) {
			orient := 1.0
			if !entry.IsFrom {
				orient = -1.0
			}
			localUtil.Set(entry.LocalKey, utilization.Column(entry.ConnKey).Scale(orient))
			localPrices.Set(entry.LocalKey, prices.Column(entry.Other).Clone())
		}

		if err := region.SetUtilization(ctx, localUtil); err != nil {
			return fmt.Errorf("set utilization for %s: %w", region.Name(), err)
		}
		if err := region.SetExchangePrices(ctx, localPrices); err != nil {
			return fmt.Errorf("set exchange prices for %s: %w", region.Name(), err)
		}
	}
	return nil
}

// updateTraces appends one row per series to the diagnostic trace files.
func (m *Market) updateTraces() error {
	if err := m.tracer.Append("prices", m.ElectricityPrices()); err != nil {
		return err
	}
	if err := m.tracer.Append("utilization", m.InterconnectorUtilization()); err != nil {
		return err
	}
	if err := m.tracer.Append("difference", m.Difference()); err != nil {
		return err
	}
	if err := m.tracer.Append("consistency", m.Consistency()); err != nil {
		return err
	}
	m.log.Debugf("'%s': updated iteration traces", m.name)
	return nil
}

// ClearMarket evaluates the market and updates the utilization of every
// region, once per iteration. A failing iteration aborts the loop and
// propagates its error; completed iterations remain applied.
func (m *Market) ClearMarket(ctx context.Context, iterations int) error {
	for i := 0; i < iterations; i++ {
		if err := m.evaluateNextIteration(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Market) evaluateNextIteration(ctx context.Context) error {
	m.iterations++
	started := time.Now()

	err := func() error {
		prices := m.ElectricityPrices()
		results := m.ExchangeResults()
		m.lastResults = results
		utilization := m.updatedUtilization(results)

		if err := m.setRegionCurves(ctx, utilization, prices); err != nil {
			return err
		}
		if err := m.cacheRegions(ctx); err != nil {
			return err
		}
		m.refreshCaches()
		return m.updateTraces()
	}()
	if err != nil {
		m.log.Errorf("'%s': an unexpected error occured", m.name)
		return err
	}

	m.log.Infof("completed iteration '%d' for '%s'", m.iterations, m.name)
	m.recordIteration(started)
	return nil
}

// recordIteration forwards the iteration summary to the metrics sink and the
// event bus.
func (m *Market) recordIteration(started time.Time) {
	exchanged := 0.0
	maxDelta := 0.0
	for _, result := range m.lastResults {
		if result.Node == "" {
			continue
		}
		if result.ExchangeMW < 0 {
			exchanged -= result.ExchangeMW
		} else {
			exchanged += result.ExchangeMW
		}
		if result.PriceDelta > maxDelta {
			maxDelta = result.PriceDelta
		}
	}

	res := metrics.IterationResult{
		Market:        m.name,
		RunID:         m.runID,
		Iteration:     m.iterations,
		ExchangedMW:   exchanged,
		MaxPriceDelta: maxDelta,
		Duration:      time.Since(started),
		Time:          time.Now(),
	}
	if err := m.sink.RecordIteration(res); err != nil {
		m.log.Warnf("'%s': record iteration metrics: %v", m.name, err)
	}
	if m.bus != nil {
		m.bus.Publish(IterationEvent{
			Market:      m.name,
			RunID:       m.runID,
			Iteration:   m.iterations,
			ExchangedMW: exchanged,
		})
	}
}

// noplogger is used when no logger is injected.
type noplogger struct{}

func (noplogger) Debugf(string, ...any)         {}
func (noplogger) Debugw(string, map[string]any) {}
func (noplogger) Infof(string, ...any)          {}
func (noplogger) Warnf(string, ...any)          {}
func (noplogger) Errorf(string, ...any)         {}
