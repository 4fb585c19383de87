package exchange

import (
	"context"
	"errors"
	"sort"

	"github.com/jwiersma/interflow/core/hourly"
)

// mockClient is an in-memory ScenarioClient used across the package tests.
type mockClient struct {
	curves  *hourly.Frame
	price   hourly.Series
	units   []DispatchableUnit
	params  map[string]float64
	ccurves *hourly.Frame
	// unattached keys reported when includeUnattached is true
	unattached []string

	deleted   []string
	uploads   int
	failFetch bool
}

func newMockClient() *mockClient {
	return &mockClient{
		curves:  hourly.NewFrame(),
		price:   hourly.Zeros(),
		params:  map[string]float64{},
		ccurves: hourly.NewFrame(),
	}
}

var errMockFetch = errors.New("remote fetch failed")

func (m *mockClient) HourlyElectricityCurves(context.Context) (*hourly.Frame, error) {
	if m.failFetch {
		return nil, errMockFetch
	}
	return m.curves.Clone(), nil
}

func (m *mockClient) HourlyElectricityPriceCurve(context.Context) (hourly.Series, error) {
	if m.failFetch {
		return nil, errMockFetch
	}
	return m.price.Clone(), nil
}

func (m *mockClient) DispatchableUnits(context.Context) ([]DispatchableUnit, error) {
	if m.failFetch {
		return nil, errMockFetch
	}
	return m.units, nil
}

func (m *mockClient) CustomCurveKeys(_ context.Context, includeUnattached bool) ([]string, error) {
	if m.failFetch {
		return nil, errMockFetch
	}
	keys := m.ccurves.Keys()
	if includeUnattached {
		keys = append(keys, m.unattached...)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *mockClient) CustomCurves(_ context.Context, keys []string) (*hourly.Frame, error) {
	if m.failFetch {
		return nil, errMockFetch
	}
	out := hourly.NewFrame()
	for _, key := range keys {
		if m.ccurves.Has(key) {
			out.Set(key, m.ccurves.Column(key).Clone())
		}
	}
	return out, nil
}

func (m *mockClient) UploadCustomCurves(_ context.Context, curves *hourly.Frame, names []string) error {
	m.uploads++
	for _, key := range curves.Keys() {
		m.ccurves.Set(key, curves.Column(key).Clone())
	}
	return nil
}

func (m *mockClient) DeleteCustomCurves(_ context.Context, keys []string) error {
	for _, key := range keys {
		m.deleted = append(m.deleted, key)
		m.ccurves.Drop(key)
	}
	return nil
}

func (m *mockClient) ScenarioParameters(context.Context) (map[string]float64, error) {
	if m.failFetch {
		return nil, errMockFetch
	}
	out := make(map[string]float64, len(m.params))
	for k, v := range m.params {
		out[k] = v
	}
	return out, nil
}

func (m *mockClient) SetScenarioParameters(_ context.Context, params map[string]float64) error {
	for k, v := range params {
		m.params[k] = v
	}
	return nil
}

// setUnit registers a dispatchable unit and its hourly output.
func (m *mockClient) setUnit(key string, marginalCosts, capacity, output float64) {
	m.units = append(m.units, DispatchableUnit{
		Key:                   key,
		MarginalCosts:         marginalCosts,
		Availability:          1,
		NumberOfUnits:         1,
		OutputCapacityPerUnit: capacity,
	})
	m.curves.Set(key+outputSuffix, hourly.Fill(output))
}
