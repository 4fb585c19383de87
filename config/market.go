package config

import (
	"fmt"
	"regexp"
)

// MarketConfig defines the market-level settings.
type MarketConfig struct {
	// Name labels the market and its trace directory.
	Name string `json:"name"`
	// WorkDir is the base directory for trace output.
	WorkDir string `json:"wdir"`
	// Reset scrubs remote interconnector state and existing traces during
	// construction. Defaults to true.
	Reset *bool `json:"reset"`
	// Iterations is the number of clearing iterations per run.
	Iterations int `json:"iterations"`
	// ExcludeUnits is a regular expression matching dispatchable units to
	// keep off the bid ladders, typically interconnector pseudo units.
	ExcludeUnits string `json:"exclude_units"`
}

// SetDefaults applies sane defaults.
func (c *MarketConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "exchange"
	}
	if c.WorkDir == "" {
		c.WorkDir = "."
	}
	if c.Reset == nil {
		reset := true
		c.Reset = &reset
	}
	if c.Iterations <= 0 {
		c.Iterations = 1
	}
	if c.ExcludeUnits == "" {
		c.ExcludeUnits = "interconnector"
	}
}

// Validate checks mandatory fields.
func (c MarketConfig) Validate() error {
	if _, err := regexp.Compile(c.ExcludeUnits); err != nil {
		return fmt.Errorf("invalid exclude_units pattern: %w", err)
	}
	return nil
}

// ResetEnabled reports whether the market resets on initialisation.
func (c MarketConfig) ResetEnabled() bool {
	return c.Reset == nil || *c.Reset
}

// ExcludePattern compiles the exclude_units expression. Validate must have
// passed.
func (c MarketConfig) ExcludePattern() *regexp.Regexp {
	return regexp.MustCompile(c.ExcludeUnits)
}
