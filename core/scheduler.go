package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const defaultSchedulerName = "scheduler"

// Scheduler runs batches of independent tasks with bounded concurrency.
//
// A Scheduler only holds immutable collaborators; every Run creates its own
// queue, workers and result collection, so one Scheduler may serve any number
// of concurrent runs.
type Scheduler struct {
	name         string
	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
}

// NewScheduler creates a Scheduler. A nil cfg uses DefaultSchedulerConfig.
func NewScheduler(name string, cfg *SchedulerConfig) *Scheduler {
	if cfg == nil {
		cfg = DefaultSchedulerConfig()
	}
	if name == "" {
		name = defaultSchedulerName
	}

	s := &Scheduler{
		name:         name,
		logger:       cfg.Logger,
		panicHandler: cfg.PanicHandler,
		metrics:      cfg.Metrics,
	}
	if s.logger == nil {
		s.logger = NewDefaultLogger()
	}
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{Logger: s.logger}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	return s
}

// Name returns the name of the scheduler
func (s *Scheduler) Name() string {
	return s.name
}

// Logger returns the logger used for task failures.
func (s *Scheduler) Logger() Logger {
	return s.logger
}

// Run executes every task exactly once using min(concurrency, len(tasks))
// workers and returns once all of them have terminated.
//
// Workers claim indices front-to-back from a shared cursor. A task error or
// panic is caught where the task is called, logged, and recorded as a failed
// Outcome; it never reaches sibling tasks or the caller. ctx is handed to
// every task as-is: Run has no timeout or cancellation of its own.
//
// Panics if concurrency is less than 1. Any larger value is allowed; it only
// bounds the worker count, which never exceeds len(tasks).
// A nil scheduler runs with the default configuration.
func Run[T any](ctx context.Context, s *Scheduler, tasks []Task[T], concurrency int) *Report[T] {
	if concurrency < 1 {
		panic("Run: concurrency must be at least 1")
	}
	if s == nil {
		s = NewScheduler("", nil)
	}

	report := newReport[T](GenerateRunID(), s.name, concurrency, len(tasks))
	if len(tasks) == 0 {
		return report
	}

	r := &run[T]{
		scheduler: s,
		queue:     newTaskQueue(tasks),
		report:    report,
	}
	report.Workers = min(concurrency, len(tasks))

	s.logger.Debug("run started",
		F("scheduler", s.name),
		F("run", report.RunID),
		F("tasks", len(tasks)),
		F("workers", report.Workers),
	)

	var wg sync.WaitGroup
	for workerID := range report.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop(ctx, workerID)
		}()
	}
	wg.Wait()

	// Per-task samples can land out of order; settle the gauges.
	s.metrics.RecordInFlight(s.name, 0)
	s.metrics.RecordQueueRemaining(s.name, 0)

	report.MaxInFlight = int(r.peak.Load())
	report.Elapsed = time.Since(report.StartedAt)

	s.logger.Info("run finished",
		F("scheduler", s.name),
		F("run", report.RunID),
		F("tasks", report.Total),
		F("succeeded", len(report.Succeeded())),
		F("failed", len(report.Failed())),
		F("elapsed", report.Elapsed),
	)
	return report
}

// run is the private state of one Run invocation.
type run[T any] struct {
	scheduler *Scheduler
	queue     *taskQueue[T]
	report    *Report[T]

	inFlight atomic.Int32
	peak     atomic.Int32
}

// workerLoop: Idle -> Claiming(index) -> Executing -> Idle, until a claim
// lands past the end of the queue.
func (r *run[T]) workerLoop(ctx context.Context, workerID int) {
	for {
		index, task, ok := r.queue.Claim()
		if !ok {
			return
		}
		r.scheduler.metrics.RecordQueueRemaining(r.scheduler.name, r.queue.Remaining())

		out := r.execute(ctx, workerID, index, task)
		r.record(out)
		r.report.append(out)
	}
}

// execute runs one task with panic recovery and converts its result into an Outcome.
func (r *run[T]) execute(ctx context.Context, workerID int, index int, task Task[T]) (out Outcome[T]) {
	out.Index = index
	out.StartedAt = time.Now()
	r.enter()

	taskCtx := context.WithValue(ctx, taskIndexKey, index)

	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			cause, ok := rec.(error)
			if !ok {
				cause = fmt.Errorf("%v", rec)
			}
			out.Value = zero
			out.Status = StatusPanicked
			out.Err = &TaskError{Index: index, Cause: cause, Panicked: true}

			r.scheduler.panicHandler.HandlePanic(taskCtx, r.scheduler.name, workerID, index, rec, debug.Stack())
			r.scheduler.metrics.RecordTaskPanic(r.scheduler.name, rec)
		}
		out.Duration = time.Since(out.StartedAt)
		r.leave()
	}()

	if task == nil {
		out.Status = StatusFailed
		out.Err = &TaskError{Index: index, Cause: ErrNilTask}
		return out
	}

	value, err := task(taskCtx)
	if err != nil {
		out.Status = StatusFailed
		out.Err = &TaskError{Index: index, Cause: err}
		return out
	}

	out.Status = StatusSucceeded
	out.Value = value
	return out
}

func (r *run[T]) record(out Outcome[T]) {
	name := r.scheduler.name
	r.scheduler.metrics.RecordTaskDuration(name, out.Status, out.Duration)
	if out.OK() {
		return
	}

	r.scheduler.metrics.RecordTaskFailed(name)
	// Panics were already reported through the PanicHandler.
	if out.Status == StatusFailed {
		r.scheduler.logger.Warn("task failed",
			F("scheduler", name),
			F("run", r.report.RunID),
			F("index", out.Index),
			F("error", out.Err.Error()),
		)
	}
}

func (r *run[T]) enter() {
	n := r.inFlight.Add(1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	r.scheduler.metrics.RecordInFlight(r.scheduler.name, int(n))
}

func (r *run[T]) leave() {
	n := r.inFlight.Add(-1)
	r.scheduler.metrics.RecordInFlight(r.scheduler.name, int(n))
}

// =============================================================================
// Context Helper
// =============================================================================
type taskIndexKeyType struct{}

var taskIndexKey taskIndexKeyType

// TaskIndex returns the index of the task whose context this is.
func TaskIndex(ctx context.Context) (int, bool) {
	if v := ctx.Value(taskIndexKey); v != nil {
		return v.(int), true
	}
	return 0, false
}
