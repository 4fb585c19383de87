package exchange

import (
	"context"
	"regexp"
	"testing"

	"github.com/jwiersma/interflow/core/hourly"
)

func newTestRegion(t *testing.T, client *mockClient, cfg RegionConfig) *Region {
	t.Helper()
	region, err := NewRegion(context.Background(), "nl", client, cfg, noplogger{})
	if err != nil {
		t.Fatalf("new region: %v", err)
	}
	return region
}

func cacheRegion(t *testing.T, region *Region) {
	t.Helper()
	if err := region.CacheProperties(context.Background()); err != nil {
		t.Fatalf("cache properties: %v", err)
	}
}

func TestNewRegionExcludesUnits(t *testing.T) {
	client := newMockClient()
	client.setUnit("coal_plant", 20, 100, 0)
	client.setUnit("interconnector_import", 0, 100, 0)

	region := newTestRegion(t, client, RegionConfig{
		ExcludeUnits: regexp.MustCompile("interconnector"),
	})

	keys := region.BidLadder().Keys()
	if len(keys) != 1 || keys[0] != "coal_plant" {
		t.Fatalf("expected ladder [coal_plant] got %v", keys)
	}
}

func TestPriceSettingUnitSkipsIdleUnits(t *testing.T) {
	client := newMockClient()
	client.setUnit("cheap", 10, 100, 100)
	client.setUnit("mid", 50, 100, 60)
	client.setUnit("peak", 80, 100, 0)

	region := newTestRegion(t, client, RegionConfig{})
	cacheRegion(t, region)

	if got := region.PriceSettingUnit()[0]; got != "mid" {
		t.Errorf("price setting unit: expected mid got '%s'", got)
	}
	if got := region.PriceSettingCapacity()[0]; got != 60 {
		t.Errorf("price setting capacity: expected 60 got %v", got)
	}
	if got := region.PriceSettingUtilization()[0]; got != 0.6 {
		t.Errorf("price setting utilization: expected 0.6 got %v", got)
	}
}

func TestPriceSettingUnitPrefersExpensiveOnTie(t *testing.T) {
	client := newMockClient()
	client.setUnit("cheap", 10, 100, 50)
	client.setUnit("dear", 40, 100, 50)

	region := newTestRegion(t, client, RegionConfig{})
	cacheRegion(t, region)

	if got := region.PriceSettingUnit()[0]; got != "dear" {
		t.Errorf("expected dear to set the price, got '%s'", got)
	}
}

func TestPriceSettingUnitEmptyWithoutDispatch(t *testing.T) {
	client := newMockClient()
	client.setUnit("idle", 10, 100, 0)

	region := newTestRegion(t, client, RegionConfig{})
	cacheRegion(t, region)

	if got := region.PriceSettingUnit()[0]; got != "" {
		t.Errorf("expected no price setting unit, got '%s'", got)
	}
	if got := region.PriceSettingCapacity()[0]; got != 0 {
		t.Errorf("expected zero capacity, got %v", got)
	}
}

func TestNextDispatchableUnit(t *testing.T) {
	client := newMockClient()
	client.setUnit("cheap", 10, 100, 100)
	client.setUnit("mid", 50, 200, 150)
	client.setUnit("peak", 80, 100, 0)

	region := newTestRegion(t, client, RegionConfig{})
	cacheRegion(t, region)

	if got := region.NextDispatchableUnit()[0]; got != "mid" {
		t.Errorf("next dispatchable: expected mid got '%s'", got)
	}
	if got := region.NextDispatchablePrice()[0]; got != 50 {
		t.Errorf("next dispatchable price: expected 50 got %v", got)
	}
	if got := region.NextDispatchableCapacity()[0]; got != 50 {
		t.Errorf("next dispatchable capacity: expected 50 got %v", got)
	}
}

func TestNextDispatchableFallsBackToLastUnit(t *testing.T) {
	client := newMockClient()
	client.setUnit("cheap", 10, 100, 100)
	client.setUnit("dear", 60, 50, 50)

	region := newTestRegion(t, client, RegionConfig{})
	cacheRegion(t, region)

	if got := region.NextDispatchableUnit()[0]; got != "dear" {
		t.Errorf("expected fallback to dear, got '%s'", got)
	}
	if got := region.NextDispatchableCapacity()[0]; got != 0 {
		t.Errorf("expected zero surplus, got %v", got)
	}
}

func TestSetUtilizationSplitsBySign(t *testing.T) {
	client := newMockClient()
	region := newTestRegion(t, client, RegionConfig{
		LocalKeys:  []string{"interconnector_1"},
		CurveNames: map[string]string{"interconnector_1": "interconnector_de"},
	})

	util := hourly.NewFrame()
	col := hourly.Zeros()
	col[0] = 2
	col[1] = -3
	util.Set("interconnector_1", col)

	if err := region.SetUtilization(context.Background(), util); err != nil {
		t.Fatalf("set utilization: %v", err)
	}

	imprt := client.ccurves.Column("interconnector_1_import_availability")
	exprt := client.ccurves.Column("interconnector_1_export_availability")
	if imprt[0] != 2 || imprt[1] != 0 {
		t.Errorf("import curve: expected [2 0] got [%v %v]", imprt[0], imprt[1])
	}
	if exprt[0] != 0 || exprt[1] != 3 {
		t.Errorf("export curve: expected [0 3] got [%v %v]", exprt[0], exprt[1])
	}
}

func TestUtilizationRoundTrip(t *testing.T) {
	client := newMockClient()
	region := newTestRegion(t, client, RegionConfig{
		LocalKeys:  []string{"interconnector_1"},
		CurveNames: map[string]string{"interconnector_1": "interconnector_de"},
	})

	util := hourly.NewFrame()
	col := hourly.Zeros()
	for h := range col {
		if h%2 == 0 {
			col[h] = 0.25
		} else {
			col[h] = -0.75
		}
	}
	util.Set("interconnector_1", col.Clone())

	if err := region.SetUtilization(context.Background(), util); err != nil {
		t.Fatalf("set utilization: %v", err)
	}
	cacheRegion(t, region)

	got := region.Utilization().Column("interconnector_1")
	for h := range col {
		if got[h] != col[h] {
			t.Fatalf("hour %d: expected %v got %v", h, col[h], got[h])
		}
	}
}

func TestExchangePricesRoundTrip(t *testing.T) {
	client := newMockClient()
	region := newTestRegion(t, client, RegionConfig{
		LocalKeys:  []string{"interconnector_1"},
		CurveNames: map[string]string{"interconnector_1": "interconnector_de"},
	})

	prices := hourly.NewFrame()
	prices.Set("interconnector_1", hourly.Fill(42.5))
	if err := region.SetExchangePrices(context.Background(), prices); err != nil {
		t.Fatalf("set exchange prices: %v", err)
	}
	cacheRegion(t, region)

	got := region.ExchangePrices().Column("interconnector_1")
	if got[0] != 42.5 {
		t.Errorf("exchange price: expected 42.5 got %v", got[0])
	}
}

func TestRemoteUtilization(t *testing.T) {
	client := newMockClient()
	client.params["electricity_interconnector_1_capacity"] = 100
	imported := hourly.Fill(80)
	exported := hourly.Fill(30)
	client.curves.Set("energy_interconnector_1_imported_electricity.output (MW)", imported)
	client.curves.Set("energy_interconnector_1_exported_electricity.input (MW)", exported)

	region := newTestRegion(t, client, RegionConfig{
		LocalKeys: []string{"interconnector_1"},
	})
	cacheRegion(t, region)

	if got := region.RemoteUtilization().Column("interconnector_1")[0]; got != 0.5 {
		t.Errorf("remote utilization: expected 0.5 got %v", got)
	}
}

func TestRegionResetZeroesWithoutCapacity(t *testing.T) {
	client := newMockClient()
	client.params["electricity_interconnector_1_capacity"] = 500
	client.ccurves.Set("interconnector_1_import_availability", hourly.Fill(1))

	newTestRegion(t, client, RegionConfig{
		Reset:     true,
		LocalKeys: []string{"interconnector_1"},
	})

	if got := client.params["electricity_interconnector_1_capacity"]; got != 0 {
		t.Errorf("expected capacity zeroed, got %v", got)
	}
	if client.ccurves.Has("interconnector_1_import_availability") {
		t.Error("expected attached availability curve to be unattached")
	}
}
