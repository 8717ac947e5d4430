package geocode

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/datavis-fr/geobatch/core"
)

// ErrNoGeocoder is returned by GeocodeAll on a Service without a Geocoder.
var ErrNoGeocoder = errors.New("geocode: no geocoder configured")

// Placement is a successfully geocoded address.
type Placement struct {
	Index    int      `json:"index"`
	Address  Address  `json:"address"`
	Location Location `json:"location"`
}

// Failure is an address that could not be geocoded.
type Failure struct {
	Index   int     `json:"index"`
	Address Address `json:"address"`
	Err     error   `json:"-"`
	Reason  string  `json:"reason"`
}

// BatchResult is the outcome of GeocodeAll.
type BatchResult struct {
	Placements []Placement // sorted by input index
	Failures   []Failure   // sorted by input index
	Report     *core.Report[Location]
}

// Stats is a snapshot of a Service's running counters.
type Stats struct {
	Requests    int64
	CacheHits   int64
	CacheMisses int64
	Succeeded   int64
	Failed      int64
}

// cacheStatter is implemented by geocoders that keep cache counters.
type cacheStatter interface {
	CacheStats() (hits, misses int64)
}

// Service geocodes address batches with bounded concurrency.
type Service struct {
	geocoder    Geocoder
	scheduler   *core.Scheduler
	concurrency int
	logger      core.Logger

	requests  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewService creates a Service. A nil scheduler runs with the defaults and a
// nil logger uses the scheduler's.
func NewService(g Geocoder, s *core.Scheduler, concurrency int, logger core.Logger) *Service {
	if s == nil {
		s = core.NewScheduler("geocode", nil)
	}
	if logger == nil {
		logger = s.Logger()
	}
	return &Service{
		geocoder:    g,
		scheduler:   s,
		concurrency: concurrency,
		logger:      logger,
	}
}

// GeocodeAll resolves every address, at most the configured concurrency at a
// time. Per-address failures are reported in BatchResult.Failures; the error
// return is reserved for a misconfigured Service.
func (s *Service) GeocodeAll(ctx context.Context, addrs []Address) (*BatchResult, error) {
	if s.geocoder == nil {
		return nil, ErrNoGeocoder
	}
	if s.concurrency < 1 {
		return nil, fmt.Errorf("geocode: concurrency must be at least 1, got %d", s.concurrency)
	}

	tasks := make([]core.Task[Location], len(addrs))
	for i, a := range addrs {
		tasks[i] = s.lookupTask(a)
	}

	report := core.Run(ctx, s.scheduler, tasks, s.concurrency)

	result := &BatchResult{Report: report}
	for _, o := range report.Sorted() {
		if o.OK() {
			result.Placements = append(result.Placements, Placement{
				Index:    o.Index,
				Address:  addrs[o.Index],
				Location: o.Value,
			})
			continue
		}
		result.Failures = append(result.Failures, Failure{
			Index:   o.Index,
			Address: addrs[o.Index],
			Err:     o.Err,
			Reason:  o.Err.Error(),
		})
	}

	s.logger.Info("geocode batch finished",
		core.F("run", report.RunID),
		core.F("addresses", len(addrs)),
		core.F("placed", len(result.Placements)),
		core.F("failed", len(result.Failures)),
		core.F("elapsed", report.Elapsed),
	)
	return result, nil
}

func (s *Service) lookupTask(a Address) core.Task[Location] {
	return func(ctx context.Context) (Location, error) {
		if err := a.Validate(); err != nil {
			s.failed.Add(1)
			return Location{}, err
		}
		s.requests.Add(1)
		loc, err := s.geocoder.Geocode(ctx, a.Query())
		if err != nil {
			s.failed.Add(1)
			return Location{}, err
		}
		s.succeeded.Add(1)
		return loc, nil
	}
}

// Stats returns the counters accumulated over every GeocodeAll call.
func (s *Service) Stats() Stats {
	st := Stats{
		Requests:  s.requests.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
	}
	if cs, ok := s.geocoder.(cacheStatter); ok {
		st.CacheHits, st.CacheMisses = cs.CacheStats()
	}
	return st
}
