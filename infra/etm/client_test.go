package etm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwiersma/interflow/core/hourly"
	"github.com/jwiersma/interflow/infra/logger"
)

func hours(v float64) []float64 {
	out := make([]float64, hourly.Hours)
	for i := range out {
		out[i] = v
	}
	return out
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Config{BaseURL: srv.URL, Token: "secret"}, "101001", logger.NopLogger{})
	return srv, client
}

func TestHourlyElectricityCurves(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scenarios/101001/curves/electricity" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		payload := map[string]any{
			"keys": []string{"b_plant", "a_plant"},
			"curves": map[string][]float64{
				"a_plant": hours(1),
				"b_plant": hours(2),
			},
		}
		json.NewEncoder(w).Encode(payload)
	})

	frame, err := client.HourlyElectricityCurves(context.Background())
	if err != nil {
		t.Fatalf("fetch curves: %v", err)
	}
	// reported key order wins over lexical order
	keys := frame.Keys()
	if len(keys) != 2 || keys[0] != "b_plant" || keys[1] != "a_plant" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if got := frame.Column("a_plant")[0]; got != 1 {
		t.Errorf("expected 1 got %v", got)
	}
}

func TestHourlyElectricityPriceCurve(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"curve": hours(42)})
	})

	curve, err := client.HourlyElectricityPriceCurve(context.Background())
	if err != nil {
		t.Fatalf("fetch price: %v", err)
	}
	if curve[0] != 42 {
		t.Errorf("expected 42 got %v", curve[0])
	}
}

func TestHourlyElectricityPriceCurveRejectsShortCurve(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"curve": []float64{1, 2, 3}})
	})

	if _, err := client.HourlyElectricityPriceCurve(context.Background()); err == nil {
		t.Fatal("expected error for short curve")
	}
}

func TestDispatchableUnitsFiltersByType(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("include_curves"); got != "false" {
			t.Errorf("expected include_curves=false got %q", got)
		}
		payload := map[string]any{
			"participants": []map[string]any{
				{
					"key": "coal_plant", "type": "dispatchable",
					"marginal_costs": 20.0, "availability": 0.9,
					"number_of_units": 2.0, "output_capacity_per_unit": 400.0,
				},
				{"key": "wind_farm", "type": "volatile"},
			},
		}
		json.NewEncoder(w).Encode(payload)
	})

	units, err := client.DispatchableUnits(context.Background())
	if err != nil {
		t.Fatalf("fetch units: %v", err)
	}
	if len(units) != 1 || units[0].Key != "coal_plant" {
		t.Fatalf("unexpected units %+v", units)
	}
	if units[0].MarginalCosts != 20 || units[0].OutputCapacityPerUnit != 400 {
		t.Errorf("unexpected unit fields: %+v", units[0])
	}
}

func TestCustomCurveKeysFiltersUnattached(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		payload := []map[string]any{
			{"key": "interconnector_1_price", "attached": true},
			{"key": "interconnector_2_price", "attached": false},
		}
		json.NewEncoder(w).Encode(payload)
	})

	keys, err := client.CustomCurveKeys(context.Background(), false)
	if err != nil {
		t.Fatalf("fetch keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "interconnector_1_price" {
		t.Fatalf("expected attached keys only, got %v", keys)
	}

	keys, err = client.CustomCurveKeys(context.Background(), true)
	if err != nil {
		t.Fatalf("fetch keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected both keys, got %v", keys)
	}
}

func TestUploadCustomCurves(t *testing.T) {
	var uploaded struct {
		Curve []float64 `json:"curve"`
		Name  string    `json:"name"`
	}
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT got %s", r.Method)
		}
		if r.URL.Path != "/scenarios/101001/custom_curves/interconnector_1_price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&uploaded); err != nil {
			t.Errorf("decode body: %v", err)
		}
	})

	curves := hourly.NewFrame()
	curves.Set("interconnector_1_price", hourly.Fill(55))
	err := client.UploadCustomCurves(context.Background(), curves, []string{"interconnector_de"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if uploaded.Name != "interconnector_de" || len(uploaded.Curve) != hourly.Hours {
		t.Errorf("unexpected upload payload: name=%q len=%d", uploaded.Name, len(uploaded.Curve))
	}
}

func TestUploadCustomCurvesRequiresMatchingNames(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	curves := hourly.NewFrame()
	curves.Set("interconnector_1_price", hourly.Zeros())
	if err := client.UploadCustomCurves(context.Background(), curves, nil); err == nil {
		t.Fatal("expected error for missing curve names")
	}
}

func TestScenarioParametersRoundTrip(t *testing.T) {
	var sent map[string]map[string]float64
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"user_values": map[string]float64{"electricity_interconnector_1_capacity": 100},
			})
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
				t.Errorf("decode body: %v", err)
			}
		}
	})

	params, err := client.ScenarioParameters(context.Background())
	if err != nil {
		t.Fatalf("fetch parameters: %v", err)
	}
	if got := params["electricity_interconnector_1_capacity"]; got != 100 {
		t.Errorf("expected 100 got %v", got)
	}

	err = client.SetScenarioParameters(context.Background(), map[string]float64{"x": 1})
	if err != nil {
		t.Fatalf("set parameters: %v", err)
	}
	if got := sent["user_values"]["x"]; got != 1 {
		t.Errorf("expected user_values forwarded, got %v", sent)
	}
}

func TestDoRejectsErrorStatus(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":["scenario not found"]}`, http.StatusNotFound)
	})

	if _, err := client.ScenarioParameters(context.Background()); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("expected error for missing base_url")
	}
	if err := (Config{BaseURL: "https://engine.example.com/api/v3"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
