package core

import (
	"slices"
	"sync"
	"time"
)

// Report is the result collection of one Run.
//
// Outcomes are appended in completion order, which is arbitrary. Every
// Outcome carries its task index, so callers needing submission order use
// Sorted.
type Report[T any] struct {
	RunID       string
	Scheduler   string
	Concurrency int // requested limit
	Workers     int // effective parallelism: min(Concurrency, Total)
	Total       int
	MaxInFlight int // peak number of simultaneously executing tasks
	StartedAt   time.Time
	Elapsed     time.Duration

	mu       sync.Mutex
	outcomes []Outcome[T]
}

func newReport[T any](runID, scheduler string, concurrency, total int) *Report[T] {
	return &Report[T]{
		RunID:       runID,
		Scheduler:   scheduler,
		Concurrency: concurrency,
		Total:       total,
		StartedAt:   time.Now(),
		outcomes:    make([]Outcome[T], 0, total),
	}
}

func (r *Report[T]) append(out Outcome[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, out)
}

// Len returns the number of recorded outcomes.
func (r *Report[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

// Outcomes returns a copy of all outcomes in completion order.
func (r *Report[T]) Outcomes() []Outcome[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.outcomes)
}

// Sorted returns a copy of all outcomes ordered by task index.
func (r *Report[T]) Sorted() []Outcome[T] {
	out := r.Outcomes()
	slices.SortFunc(out, func(a, b Outcome[T]) int {
		return a.Index - b.Index
	})
	return out
}

// Values returns the values of successful tasks in completion order.
func (r *Report[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	values := make([]T, 0, len(r.outcomes))
	for _, o := range r.outcomes {
		if o.OK() {
			values = append(values, o.Value)
		}
	}
	return values
}

// Succeeded returns the successful outcomes in completion order.
func (r *Report[T]) Succeeded() []Outcome[T] {
	return r.filter(func(o Outcome[T]) bool { return o.OK() })
}

// Failed returns the failed and panicked outcomes in completion order.
func (r *Report[T]) Failed() []Outcome[T] {
	return r.filter(func(o Outcome[T]) bool { return !o.OK() })
}

// Missing returns, in ascending order, the indices that have no outcome.
// A task listed here was never attempted, as opposed to attempted and failed.
func (r *Report[T]) Missing() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make([]bool, r.Total)
	for _, o := range r.outcomes {
		if o.Index >= 0 && o.Index < r.Total {
			seen[o.Index] = true
		}
	}

	var missing []int
	for i, ok := range seen {
		if !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

func (r *Report[T]) filter(keep func(Outcome[T]) bool) []Outcome[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Outcome[T]
	for _, o := range r.outcomes {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}
