package agentz

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zoobzio/agentz/attributes"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "AGENTZ_"

// Config is the agent configuration.
type Config struct {
	// Log level: "debug", "info", "warn", "error"
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Attribute limits and global include/exclude rules
	Attributes AttributesConfig `envPrefix:"ATTRIBUTES_"`

	// Per-destination attribute rules
	TransactionEvents   DestinationConfig `envPrefix:"TRANSACTION_EVENTS_ATTRIBUTES_"`
	TransactionTracer   DestinationConfig `envPrefix:"TRANSACTION_TRACER_ATTRIBUTES_"`
	ErrorCollector      DestinationConfig `envPrefix:"ERROR_COLLECTOR_ATTRIBUTES_"`
	BrowserMonitoring   DestinationConfig `envPrefix:"BROWSER_MONITORING_ATTRIBUTES_"`
	SpanEvents          DestinationConfig `envPrefix:"SPAN_EVENTS_ATTRIBUTES_"`
	TransactionSegments DestinationConfig `envPrefix:"TRANSACTION_SEGMENTS_ATTRIBUTES_"`

	// Harvest pipeline sizing
	Harvest HarvestConfig `envPrefix:"HARVEST_"`
}

// AttributesConfig holds attribute limits and the rules shared by every destination.
type AttributesConfig struct {
	Include []string `env:"INCLUDE" envSeparator:","`
	Exclude []string `env:"EXCLUDE" envSeparator:","`

	// Enable attribute collection
	Enabled bool `env:"ENABLED" envDefault:"true"`

	// Maximum stored keys per scope
	Limit int `env:"LIMIT" envDefault:"64"`

	// Maximum key length in bytes
	MaxKeyBytes int `env:"MAX_KEY_BYTES" envDefault:"255"`

	// String values are truncated to this many bytes on read
	MaxValueBytes int `env:"MAX_VALUE_BYTES" envDefault:"255"`

	// Per-key filter decisions remembered by each filter snapshot
	FilterCacheSize int `env:"FILTER_CACHE_SIZE" envDefault:"1000"`
}

// DestinationConfig holds the rules of one destination class.
// Enabled has no env default; DefaultConfig decides it per destination.
type DestinationConfig struct {
	Include []string `env:"INCLUDE" envSeparator:","`
	Exclude []string `env:"EXCLUDE" envSeparator:","`
	Enabled bool     `env:"ENABLED"`
}

// HarvestConfig sizes the harvest pipeline.
type HarvestConfig struct {
	// Async handler workers; 0 runs async handlers on their own goroutines
	Workers int `env:"WORKERS" envDefault:"0"`

	// Async handler queue size when workers are enabled
	QueueSize int `env:"QUEUE_SIZE" envDefault:"1000"`

	// Pre-generated transaction IDs; 0 sizes by CPU count
	IDPoolSize int `env:"ID_POOL_SIZE" envDefault:"0"`
}

// DefaultConfig returns the configuration used when nothing is set.
// Browser monitoring attributes are off by default.
func DefaultConfig() Config {
	on := DestinationConfig{Enabled: true}
	return Config{
		LogLevel: "info",
		Attributes: AttributesConfig{
			Enabled:         true,
			Limit:           attributes.DefaultLimit,
			MaxKeyBytes:     attributes.DefaultMaxKeyBytes,
			MaxValueBytes:   attributes.DefaultMaxValueBytes,
			FilterCacheSize: attributes.DefaultFilterCacheSize,
		},
		TransactionEvents:   on,
		TransactionTracer:   on,
		ErrorCollector:      on,
		BrowserMonitoring:   DestinationConfig{Enabled: false},
		SpanEvents:          on,
		TransactionSegments: on,
		Harvest: HarvestConfig{
			QueueSize: 1000,
		},
	}
}

// LoadConfig overlays AGENTZ_* environment variables on DefaultConfig.
func LoadConfig() (Config, error) {
	return loadConfig(env.Options{Prefix: EnvPrefix})
}

func loadConfig(opts env.Options) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.Attributes.Limit <= 0 {
		return fmt.Errorf("attribute limit must be > 0, got %d", c.Attributes.Limit)
	}
	if c.Attributes.MaxKeyBytes <= 0 {
		return fmt.Errorf("attribute key limit must be > 0, got %d", c.Attributes.MaxKeyBytes)
	}
	if c.Attributes.MaxValueBytes <= 0 {
		return fmt.Errorf("attribute value limit must be > 0, got %d", c.Attributes.MaxValueBytes)
	}
	if c.Harvest.Workers < 0 {
		return fmt.Errorf("harvest workers cannot be negative")
	}
	if c.Harvest.Workers > 0 && c.Harvest.QueueSize <= 0 {
		return fmt.Errorf("harvest queue size must be > 0 when workers are enabled")
	}
	return nil
}

// FilterConfig converts the attribute sections into a filter configuration.
func (c Config) FilterConfig() attributes.FilterConfig {
	dests := map[attributes.Destination]DestinationConfig{
		attributes.TransEvent:   c.TransactionEvents,
		attributes.TransTrace:   c.TransactionTracer,
		attributes.ErrorEvent:   c.ErrorCollector,
		attributes.BrowserEvent: c.BrowserMonitoring,
		attributes.SpanEvent:    c.SpanEvents,
		attributes.TransSegment: c.TransactionSegments,
	}
	fc := attributes.FilterConfig{
		Enabled:      c.Attributes.Enabled,
		Include:      c.Attributes.Include,
		Exclude:      c.Attributes.Exclude,
		CacheSize:    c.Attributes.FilterCacheSize,
		Destinations: make(map[attributes.Destination]attributes.DestinationConfig, len(dests)),
	}
	for d, dc := range dests {
		fc.Destinations[d] = attributes.DestinationConfig{
			Enabled: dc.Enabled,
			Include: dc.Include,
			Exclude: dc.Exclude,
		}
	}
	return fc
}

// NewLogger builds a production zap logger at the configured level.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
