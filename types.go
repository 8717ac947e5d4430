package geobatch

import (
	"context"

	"github.com/datavis-fr/geobatch/core"
)

// Re-export commonly used types from core package for convenience.
// This allows users to import only the geobatch package for most use cases.

// Task is the unit of work: a closure producing a value or an error
type Task[T any] = core.Task[T]

// Outcome is one entry of a run's result collection
type Outcome[T any] = core.Outcome[T]

// Report is the result collection of one run
type Report[T any] = core.Report[T]

// TaskError reports a failed or panicked task together with its index
type TaskError = core.TaskError

// TaskStatus classifies an Outcome
type TaskStatus = core.TaskStatus

// Scheduler runs batches with bounded concurrency
type Scheduler = core.Scheduler

// SchedulerConfig holds the Scheduler collaborators (logger, panic handler, metrics)
type SchedulerConfig = core.SchedulerConfig

// RetryPolicy configures WithRetry
type RetryPolicy = core.RetryPolicy

// Status constants
const (
	StatusSucceeded TaskStatus = core.StatusSucceeded
	StatusFailed    TaskStatus = core.StatusFailed
	StatusPanicked  TaskStatus = core.StatusPanicked
)

// ErrNilTask is recorded for nil entries of a task slice
var ErrNilTask = core.ErrNilTask

// NewScheduler creates a named Scheduler. A nil cfg uses the defaults.
func NewScheduler(name string, cfg *SchedulerConfig) *Scheduler {
	return core.NewScheduler(name, cfg)
}

// Run executes tasks with at most concurrency of them in flight, using a
// scheduler with the default configuration. See core.Run.
func Run[T any](ctx context.Context, tasks []Task[T], concurrency int) *Report[T] {
	return core.Run(ctx, nil, tasks, concurrency)
}

// RunWith is Run on an explicit Scheduler, for callers that configure logging or metrics.
func RunWith[T any](ctx context.Context, s *Scheduler, tasks []Task[T], concurrency int) *Report[T] {
	return core.Run(ctx, s, tasks, concurrency)
}

// Convenience re-exports of the caller-side task wrappers
var (
	DefaultRetryPolicy = core.DefaultRetryPolicy
	NoRetry            = core.NoRetry
	Permanent          = core.Permanent
	TaskIndex          = core.TaskIndex
)
