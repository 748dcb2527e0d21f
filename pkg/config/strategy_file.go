package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// strategyFile is the optional YAML override for strategy parameters. Only
// fields present in the file replace the environment-derived values.
type strategyFile struct {
	Strategy string        `yaml:"strategy"`
	Trend    *TrendParams  `yaml:"trend"`
	Hybrid   *HybridParams `yaml:"hybrid"`
}

// applyStrategyFile merges overrides from a YAML file into the config.
func (c *Config) applyStrategyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Seed the file structs with current values so omitted fields keep them.
	file := strategyFile{
		Trend:  &TrendParams{},
		Hybrid: &HybridParams{},
	}
	*file.Trend = c.Trend
	*file.Hybrid = c.Hybrid

	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	if file.Strategy != "" {
		c.Strategy = file.Strategy
	}
	if file.Trend != nil {
		c.Trend = *file.Trend
	}
	if file.Hybrid != nil {
		c.Hybrid = *file.Hybrid
	}
	return nil
}
