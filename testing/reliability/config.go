package reliability

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// ReliabilityConfig holds configuration for reliability testing.
type ReliabilityConfig struct {
	// "basic" or "stress"
	Level string `env:"LEVEL"`
	// Test duration for stress tests
	Duration time.Duration `env:"DURATION" envDefault:"30s"`
	// Maximum goroutines for concurrent tests
	MaxGoroutines int `env:"MAX_GOROUTINES" envDefault:"100"`
	// Drop rate threshold (0.0-1.0)
	FailureThreshold float64 `env:"FAILURE_THRESHOLD" envDefault:"0.05"`
}

// getReliabilityConfig reads AGENTZ_RELIABILITY_* environment variables.
// Unparseable values fall back to defaults.
func getReliabilityConfig() ReliabilityConfig {
	var config ReliabilityConfig
	if err := env.ParseWithOptions(&config, env.Options{Prefix: "AGENTZ_RELIABILITY_"}); err != nil {
		return ReliabilityConfig{
			Duration:         30 * time.Second,
			MaxGoroutines:    100,
			FailureThreshold: 0.05,
		}
	}
	return config
}
