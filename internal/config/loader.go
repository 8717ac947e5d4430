package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/datavis-fr/geobatch/geocode"
)

const envPrefix = "GEOBATCH_"

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path, applies defaults and GEOBATCH_* overrides,
// then validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("listen_addr", isListenAddr); err != nil {
		return fmt.Errorf("register listen_addr: %w", err)
	}
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// isListenAddr accepts what net.Listen takes for TCP: an optional host and a
// numeric port in [0, 65535].
func isListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	_, err = strconv.ParseUint(port, 10, 16)
	return err == nil
}

// applyDefaults fills in zero-value fields.
func applyDefaults(cfg *Config) {
	if cfg.Scheduler.Concurrency == 0 {
		cfg.Scheduler.Concurrency = 4
	}
	if cfg.Geocoder.Endpoint == "" {
		cfg.Geocoder.Endpoint = geocode.DefaultEndpoint
	}
	if cfg.Geocoder.UserAgent == "" {
		cfg.Geocoder.UserAgent = geocode.DefaultUserAgent
	}
	if cfg.Geocoder.RequestsPerSecond == 0 {
		cfg.Geocoder.RequestsPerSecond = 1
	}
	if cfg.Geocoder.Burst == 0 {
		cfg.Geocoder.Burst = 1
	}
	if cfg.Geocoder.Timeout == 0 {
		cfg.Geocoder.Timeout = 10 * time.Second
	}
	if cfg.Geocoder.MaxRetries == 0 {
		cfg.Geocoder.MaxRetries = 3
	}
	if cfg.Geocoder.InitialDelay == 0 {
		cfg.Geocoder.InitialDelay = 500 * time.Millisecond
	}
	if cfg.Geocoder.MaxDelay == 0 {
		cfg.Geocoder.MaxDelay = 10 * time.Second
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	if cfg.Heatmap.CellSize == 0 {
		cfg.Heatmap.CellSize = 0.5
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "geobatch"
	}
	if cfg.Metrics.PollInterval == 0 {
		cfg.Metrics.PollInterval = 5 * time.Second
	}
}

// applyEnv overrides fields from GEOBATCH_* variables.
func applyEnv(cfg *Config) error {
	if v, ok := lookup("CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCONCURRENCY: %w", envPrefix, err)
		}
		cfg.Scheduler.Concurrency = n
	}
	if v, ok := lookup("NOMINATIM_URL"); ok {
		cfg.Geocoder.Endpoint = v
	}
	if v, ok := lookup("USER_AGENT"); ok {
		cfg.Geocoder.UserAgent = v
	}
	if v, ok := lookup("CACHE_DRIVER"); ok {
		cfg.Cache.Driver = v
	}
	if v, ok := lookup("CACHE_PATH"); ok {
		cfg.Cache.Path = v
	}
	if v, ok := lookup("METRICS_ADDR"); ok {
		cfg.Metrics.Addr = v
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
