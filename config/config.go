package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jwiersma/interflow/core/exchange"
	"github.com/jwiersma/interflow/infra/etm"
	"github.com/jwiersma/interflow/infra/mqtt"
)

type Config struct {
	Market          MarketConfig              `json:"market"`
	API             etm.Config                `json:"api"`
	Regions         map[string]string         `json:"regions"`
	Interconnectors []exchange.Interconnector `json:"interconnectors"`
	// MPIProfiles is the path of a semicolon-delimited, comma-decimal CSV
	// file with one column per MPI-enabled interconnector. Optional.
	MPIProfiles string        `json:"mpi_profiles"`
	Metrics     MetricsConfig `json:"metrics"`
	MQTT        mqtt.Config   `json:"mqtt"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("IF_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "if_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Market.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Market.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.API.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-section requirements.
func (c Config) Validate() error {
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	if len(c.Interconnectors) == 0 {
		return fmt.Errorf("at least one interconnector is required")
	}
	return nil
}
