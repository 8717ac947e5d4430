package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/datavis-fr/geobatch/core"
	"github.com/datavis-fr/geobatch/geocode"
	"github.com/datavis-fr/geobatch/geocode/sqlitecache"
	"github.com/datavis-fr/geobatch/internal/config"
	obs "github.com/datavis-fr/geobatch/observability/prometheus"
)

// app is the state shared by one command invocation.
type app struct {
	cfg       *config.Config
	slogger   *slog.Logger
	logger    core.Logger
	registry  *prom.Registry
	scheduler *core.Scheduler
	service   *geocode.Service
	poller    *obs.SnapshotPoller
	closers   []func() error
}

// newApp loads configuration, applies flag overrides and wires the geocoding stack.
func newApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	level := slog.LevelInfo
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	sl := slog.New(slog.NewTextHandler(errWriter(cmd), &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// CLI flags override config
	if cmd.IsSet("concurrency") {
		cfg.Scheduler.Concurrency = cmd.Int("concurrency")
	}
	if cmd.IsSet("metrics-addr") {
		cfg.Metrics.Addr = cmd.String("metrics-addr")
	}
	if cmd.IsSet("endpoint") {
		cfg.Geocoder.Endpoint = cmd.String("endpoint")
	}
	if cmd.IsSet("rps") {
		cfg.Geocoder.RequestsPerSecond = cmd.Float("rps")
	}
	if cmd.IsSet("cache") {
		cfg.Cache.Driver = cmd.String("cache")
	}
	if cmd.IsSet("cache-path") {
		cfg.Cache.Path = cmd.String("cache-path")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		slogger:  sl,
		logger:   core.NewSlogLogger(sl),
		registry: prom.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := obs.NewMetricsExporter(cfg.Metrics.Namespace, a.registry, obs.ExporterOptions{})
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	a.scheduler = core.NewScheduler("geocode", &core.SchedulerConfig{
		Logger:  a.logger,
		Metrics: exporter,
	})

	geocoder, err := a.buildGeocoder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = geocode.NewService(geocoder, a.scheduler, cfg.Scheduler.Concurrency, a.logger)

	a.poller, err = obs.NewSnapshotPoller(cfg.Metrics.Namespace, a.registry, cfg.Metrics.PollInterval)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("register poller: %w", err)
	}
	a.poller.AddService("geocode", a.service)

	return a, nil
}

func (a *app) buildGeocoder(ctx context.Context) (geocode.Geocoder, error) {
	g := a.cfg.Geocoder
	client, err := geocode.NewNominatimClient(geocode.ClientConfig{
		Endpoint:          g.Endpoint,
		UserAgent:         g.UserAgent,
		RequestsPerSecond: g.RequestsPerSecond,
		Burst:             g.Burst,
		Timeout:           g.Timeout,
		Retry:             g.RetryPolicy(),
	}, geocode.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	switch a.cfg.Cache.Driver {
	case "none":
		return client, nil
	case "sqlite":
		cache, err := sqlitecache.Open(ctx, a.cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cache.Close)
		a.logger.Debug("geocode cache opened", core.F("driver", "sqlite"), core.F("path", a.cfg.Cache.Path))
		return geocode.NewCachedGeocoder(client, cache, a.logger), nil
	default:
		return geocode.NewCachedGeocoder(client, geocode.NewMemoryCache(), a.logger), nil
	}
}

// Close releases resources opened by newApp.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// geocodeAll runs the batch, serving metrics alongside when configured.
func (a *app) geocodeAll(ctx context.Context, addrs []geocode.Address) (*geocode.BatchResult, error) {
	var result *geocode.BatchResult
	err := serveWhile(ctx, a, func(ctx context.Context) error {
		var err error
		result, err = a.service.GeocodeAll(ctx, addrs)
		return err
	})
	return result, err
}

func readAddresses(cmd *cli.Command, path string) ([]geocode.Address, error) {
	var r io.Reader
	if path == "" || path == "-" {
		r = reader(cmd)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var addrs []geocode.Address
	if err := json.NewDecoder(r).Decode(&addrs); err != nil {
		return nil, fmt.Errorf("decode addresses: %w", err)
	}
	return addrs, nil
}

func writeJSON(cmd *cli.Command, path string, v any) error {
	var w io.Writer = writer(cmd)
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func reader(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
