// Package etm implements the exchange.ScenarioClient contract against the
// HTTP API of a remote energy scenario service. It is a thin adapter: no
// retries, no caching, one request per call.
package etm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/jwiersma/interflow/core/exchange"
	"github.com/jwiersma/interflow/core/hourly"
	"github.com/jwiersma/interflow/core/logger"
)

// Config holds the connection settings of the scenario service.
type Config struct {
	// BaseURL is the API root, e.g. https://engine.example.com/api/v3.
	BaseURL string `json:"base_url"`
	// Token is the bearer token sent with every request. Optional.
	Token string `json:"token"`
	// TimeoutSeconds bounds every request, default 30.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	return nil
}

// Client talks to one remote scenario.
type Client struct {
	cfg        Config
	scenarioID string
	http       *http.Client
	log        logger.Logger
}

// NewClient creates a client bound to a scenario id.
func NewClient(cfg Config, scenarioID string, log logger.Logger) *Client {
	cfg.SetDefaults()
	return &Client{
		cfg:        cfg,
		scenarioID: scenarioID,
		http:       &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:        log,
	}
}

// NewFactory returns an exchange.ClientFactory over this configuration.
func NewFactory(cfg Config, log logger.Logger) exchange.ClientFactory {
	return func(scenarioID string) exchange.ScenarioClient {
		return NewClient(cfg, scenarioID, log)
	}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/scenarios/%s/%s", c.cfg.BaseURL, c.scenarioID, path)
}

// do performs one request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// HourlyElectricityCurves fetches the hourly dispatch of every electricity
// key in the scenario.
func (c *Client) HourlyElectricityCurves(ctx context.Context) (*hourly.Frame, error) {
	var payload struct {
		Curves map[string][]float64 `json:"curves"`
		Keys   []string             `json:"keys"`
	}
	if err := c.do(ctx, http.MethodGet, c.endpoint("curves/electricity"), nil, &payload); err != nil {
		return nil, err
	}
	return frameFromPayload(payload.Keys, payload.Curves)
}

// HourlyElectricityPriceCurve fetches the hourly electricity price.
func (c *Client) HourlyElectricityPriceCurve(ctx context.Context) (hourly.Series, error) {
	var payload struct {
		Curve []float64 `json:"curve"`
	}
	if err := c.do(ctx, http.MethodGet, c.endpoint("curves/electricity_price"), nil, &payload); err != nil {
		return nil, err
	}
	return hourly.FromSlice(payload.Curve)
}

// DispatchableUnits fetches the dispatchable merit order participants.
func (c *Client) DispatchableUnits(ctx context.Context) ([]exchange.DispatchableUnit, error) {
	var payload struct {
		Participants []struct {
			Key                   string  `json:"key"`
			Type                  string  `json:"type"`
			MarginalCosts         float64 `json:"marginal_costs"`
			Availability          float64 `json:"availability"`
			NumberOfUnits         float64 `json:"number_of_units"`
			OutputCapacityPerUnit float64 `json:"output_capacity_per_unit"`
		} `json:"participants"`
	}
	url := c.endpoint("merit") + "?include_curves=false"
	if err := c.do(ctx, http.MethodGet, url, nil, &payload); err != nil {
		return nil, err
	}

	var units []exchange.DispatchableUnit
	for _, p := range payload.Participants {
		if p.Type != "dispatchable" {
			continue
		}
		units = append(units, exchange.DispatchableUnit{
			Key:                   p.Key,
			MarginalCosts:         p.MarginalCosts,
			Availability:          p.Availability,
			NumberOfUnits:         p.NumberOfUnits,
			OutputCapacityPerUnit: p.OutputCapacityPerUnit,
		})
	}
	return units, nil
}

// CustomCurveKeys lists the scenario's custom curve keys.
func (c *Client) CustomCurveKeys(ctx context.Context, includeUnattached bool) ([]string, error) {
	var payload []struct {
		Key      string `json:"key"`
		Attached bool   `json:"attached"`
	}
	url := c.endpoint("custom_curves")
	if includeUnattached {
		url += "?include_unattached=true"
	}
	if err := c.do(ctx, http.MethodGet, url, nil, &payload); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(payload))
	for _, entry := range payload {
		if !includeUnattached && !entry.Attached {
			continue
		}
		keys = append(keys, entry.Key)
	}
	return keys, nil
}

// CustomCurves fetches the attached curves for the given keys.
func (c *Client) CustomCurves(ctx context.Context, keys []string) (*hourly.Frame, error) {
	out := hourly.NewFrame()
	for _, key := range keys {
		var payload struct {
			Curve []float64 `json:"curve"`
		}
		if err := c.do(ctx, http.MethodGet, c.endpoint("custom_curves/"+key), nil, &payload); err != nil {
			return nil, err
		}
		curve, err := hourly.FromSlice(payload.Curve)
		if err != nil {
			return nil, fmt.Errorf("curve %s: %w", key, err)
		}
		out.Set(key, curve)
	}
	return out, nil
}

// UploadCustomCurves uploads the frame columns as custom curves.
func (c *Client) UploadCustomCurves(ctx context.Context, curves *hourly.Frame, names []string) error {
	keys := curves.Keys()
	if len(names) != len(keys) {
		return fmt.Errorf("expected %d curve names, got %d", len(keys), len(names))
	}
	for i, key := range keys {
		body := map[string]any{
			"curve": []float64(curves.Column(key)),
			"name":  names[i],
		}
		if err := c.do(ctx, http.MethodPut, c.endpoint("custom_curves/"+key), body, nil); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCustomCurves unattaches the given custom curves.
func (c *Client) DeleteCustomCurves(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := c.do(ctx, http.MethodDelete, c.endpoint("custom_curves/"+key), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// ScenarioParameters fetches the scenario's numeric user values.
func (c *Client) ScenarioParameters(ctx context.Context) (map[string]float64, error) {
	var payload struct {
		UserValues map[string]float64 `json:"user_values"`
	}
	if err := c.do(ctx, http.MethodGet, c.endpoint("parameters"), nil, &payload); err != nil {
		return nil, err
	}
	return payload.UserValues, nil
}

// SetScenarioParameters uploads the given user values.
func (c *Client) SetScenarioParameters(ctx context.Context, params map[string]float64) error {
	body := map[string]any{"user_values": params}
	return c.do(ctx, http.MethodPut, c.endpoint("parameters"), body, nil)
}

// frameFromPayload turns a key/curve payload into a frame, preserving the
// reported key order when present.
func frameFromPayload(keys []string, curves map[string][]float64) (*hourly.Frame, error) {
	if keys == nil {
		for key := range curves {
			keys = append(keys, key)
		}
		sort.Strings(keys)
	}
	out := hourly.NewFrame()
	for _, key := range keys {
		curve, err := hourly.FromSlice(curves[key])
		if err != nil {
			return nil, fmt.Errorf("curve %s: %w", key, err)
		}
		out.Set(key, curve)
	}
	return out, nil
}
