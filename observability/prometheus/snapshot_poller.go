package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/datavis-fr/geobatch/geocode"
	prom "github.com/prometheus/client_golang/prometheus"
)

// GeocoderStatsProvider provides current geocoding counters, e.g. *geocode.Service.
type GeocoderStatsProvider interface {
	Stats() geocode.Stats
}

// SnapshotPoller periodically exports geocoder Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	servicesMu sync.RWMutex
	services   map[string]GeocoderStatsProvider

	requests    *prom.GaugeVec
	cacheHits   *prom.GaugeVec
	cacheMisses *prom.GaugeVec
	succeeded   *prom.GaugeVec
	failed      *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "geobatch"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"service"})
	}
	requests := gauge("geocoder_requests", "Lookups issued to the geocoder.")
	cacheHits := gauge("geocoder_cache_hits", "Lookups answered from the cache.")
	cacheMisses := gauge("geocoder_cache_misses", "Lookups that missed the cache.")
	succeeded := gauge("geocoder_succeeded", "Addresses geocoded successfully.")
	failed := gauge("geocoder_failed", "Addresses that could not be geocoded.")

	var err error
	for _, g := range []**prom.GaugeVec{&requests, &cacheHits, &cacheMisses, &succeeded, &failed} {
		if *g, err = registerCollector(reg, *g); err != nil {
			return nil, err
		}
	}

	return &SnapshotPoller{
		interval:    interval,
		services:    make(map[string]GeocoderStatsProvider),
		requests:    requests,
		cacheHits:   cacheHits,
		cacheMisses: cacheMisses,
		succeeded:   succeeded,
		failed:      failed,
	}, nil
}

// AddService adds or replaces a stats provider by name.
func (p *SnapshotPoller) AddService(name string, provider GeocoderStatsProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "geocode")
	p.servicesMu.Lock()
	p.services[name] = provider
	p.servicesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

// CollectOnce takes one snapshot immediately.
func (p *SnapshotPoller) CollectOnce() {
	if p == nil {
		return
	}
	p.collectOnce()
}

func (p *SnapshotPoller) collectOnce() {
	p.servicesMu.RLock()
	defer p.servicesMu.RUnlock()

	for name, provider := range p.services {
		stats := provider.Stats()
		p.requests.WithLabelValues(name).Set(float64(stats.Requests))
		p.cacheHits.WithLabelValues(name).Set(float64(stats.CacheHits))
		p.cacheMisses.WithLabelValues(name).Set(float64(stats.CacheMisses))
		p.succeeded.WithLabelValues(name).Set(float64(stats.Succeeded))
		p.failed.WithLabelValues(name).Set(float64(stats.Failed))
	}
}
