// Package config loads geobatch settings from a YAML file and GEOBATCH_*
// environment variables.
package config

import (
	"time"

	"github.com/datavis-fr/geobatch/core"
)

// Config is the top-level geobatch configuration.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Geocoder  GeocoderConfig  `yaml:"geocoder"`
	Cache     CacheConfig     `yaml:"cache"`
	Heatmap   HeatmapConfig   `yaml:"heatmap"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type SchedulerConfig struct {
	Concurrency int `yaml:"concurrency" validate:"min=1"`
}

// GeocoderConfig configures the Nominatim client.
type GeocoderConfig struct {
	Endpoint          string        `yaml:"endpoint" validate:"required,url"`
	UserAgent         string        `yaml:"user_agent" validate:"required"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
	Burst             int           `yaml:"burst" validate:"min=1"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries        int           `yaml:"max_retries" validate:"min=-1,max=20"` // -1 disables retries
	InitialDelay      time.Duration `yaml:"initial_delay" validate:"min=0"`
	MaxDelay          time.Duration `yaml:"max_delay" validate:"min=0"`
}

// RetryPolicy converts the retry settings for the geocoder.
func (g GeocoderConfig) RetryPolicy() core.RetryPolicy {
	return core.RetryPolicy{
		MaxRetries:   max(g.MaxRetries, 0),
		InitialDelay: g.InitialDelay,
		MaxDelay:     g.MaxDelay,
		BackoffRatio: 2.0,
	}
}

// CacheConfig selects the geocode cache: "none", "memory" or "sqlite".
type CacheConfig struct {
	Driver string `yaml:"driver" validate:"oneof=none memory sqlite"`
	Path   string `yaml:"path" validate:"required_if=Driver sqlite"`
}

type HeatmapConfig struct {
	CellSize float64 `yaml:"cell_size" validate:"gt=0,lte=10"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it;
// port 0 picks a free port.
type MetricsConfig struct {
	Addr         string        `yaml:"addr" validate:"omitempty,listen_addr"`
	Namespace    string        `yaml:"namespace" validate:"required"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
}
