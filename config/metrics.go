package config

// MetricsConfig selects the sinks receiving per-iteration results. Both
// sinks are optional; without any, iteration results are discarded.
type MetricsConfig struct {
	Prometheus PrometheusConfig `json:"prometheus"`
	Influx     InfluxConfig     `json:"influx"`
}

// PrometheusConfig enables the Prometheus sink and its scrape endpoint.
type PrometheusConfig struct {
	Enabled bool `json:"enabled"`
	// Port of the /metrics HTTP listener, default 2112.
	Port int `json:"port"`
}

// SetDefaults applies sane defaults.
func (c *PrometheusConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 2112
	}
}

// InfluxConfig enables the InfluxDB sink.
type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}
