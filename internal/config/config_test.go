package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Thresholds: Thresholds{Low: 0.3, Medium: 0.6, High: 0.8},
		Matcher:    Matcher{ProximityWindow: 10},
		Dedup:      Dedup{Backend: "memory", Window: 72 * time.Hour, SimilarityThreshold: 0.9},
		Pipeline:   Pipeline{Concurrency: 4, BatchLimit: 100},
	}
}

func TestValidateConfig(t *testing.T) {
	if err := validateConfig(validConfig()); err != nil {
		t.Errorf("Valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"thresholds out of order": func(c *Config) { c.Thresholds = Thresholds{Low: 0.6, Medium: 0.3, High: 0.8} },
		"threshold above one":     func(c *Config) { c.Thresholds.High = 1.5 },
		"negative similarity":     func(c *Config) { c.Dedup.SimilarityThreshold = -0.1 },
		"zero dedup window":       func(c *Config) { c.Dedup.Window = 0 },
		"unknown dedup backend":   func(c *Config) { c.Dedup.Backend = "cassandra" },
		"zero concurrency":        func(c *Config) { c.Pipeline.Concurrency = 0 },
		"zero proximity window":   func(c *Config) { c.Matcher.ProximityWindow = 0 },
	}
	for name, mutate := range cases {
		c := validConfig()
		mutate(c)
		if err := validateConfig(c); err == nil {
			t.Errorf("Expected rejection for %s", name)
		}
	}
}
