package exchange

import (
	"context"

	"github.com/jwiersma/interflow/core/hourly"
)

// DispatchableUnit is one dispatchable participant of a remote scenario, as
// reported by its merit order configuration.
type DispatchableUnit struct {
	Key                   string
	MarginalCosts         float64
	Availability          float64
	NumberOfUnits         float64
	OutputCapacityPerUnit float64
}

// ScenarioClient is the narrow contract between a region and its remote
// scenario. Implementations perform blocking network calls; the core never
// builds requests itself and does not retry on failure.
type ScenarioClient interface {
	// HourlyElectricityCurves returns the hourly dispatch of every
	// electricity producing and consuming key in the scenario.
	HourlyElectricityCurves(ctx context.Context) (*hourly.Frame, error)

	// HourlyElectricityPriceCurve returns the hourly electricity price.
	HourlyElectricityPriceCurve(ctx context.Context) (hourly.Series, error)

	// DispatchableUnits returns the dispatchable merit order participants.
	DispatchableUnits(ctx context.Context) ([]DispatchableUnit, error)

	// CustomCurveKeys lists custom curve keys. When includeUnattached is
	// true, keys without an uploaded curve are included as well.
	CustomCurveKeys(ctx context.Context, includeUnattached bool) ([]string, error)

	// CustomCurves returns the attached custom curves for the given keys.
	CustomCurves(ctx context.Context, keys []string) (*hourly.Frame, error)

	// UploadCustomCurves uploads the frame columns as custom curves keyed
	// by column. The names slice provides one display name per column.
	UploadCustomCurves(ctx context.Context, curves *hourly.Frame, names []string) error

	// DeleteCustomCurves unattaches the custom curves under the given keys.
	DeleteCustomCurves(ctx context.Context, keys []string) error

	// ScenarioParameters returns the scenario's numeric user values.
	ScenarioParameters(ctx context.Context) (map[string]float64, error)

	// SetScenarioParameters uploads the given user values.
	SetScenarioParameters(ctx context.Context, params map[string]float64) error
}
