package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
//
// Implementations should be thread-safe as they may be called concurrently
// from every worker of a run.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context the task was running with
	// - schedulerName: The name of the scheduler that ran the task
	// - workerID: The ID of the worker lane inside the run
	// - index: The index of the task in the submitted slice
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, schedulerName string, workerID int, index int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs the panic and its stack through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, schedulerName string, workerID int, index int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panic recovered",
		F("scheduler", schedulerName),
		F("worker", workerID),
		F("index", index),
		F("panic", fmt.Sprint(panicInfo)),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution.
type Metrics interface {
	// RecordTaskDuration records how long a task took and how it ended.
	RecordTaskDuration(schedulerName string, status TaskStatus, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(schedulerName string, panicInfo any)

	// RecordTaskFailed records a failed task (error or panic).
	RecordTaskFailed(schedulerName string)

	// RecordInFlight records the number of tasks currently executing.
	RecordInFlight(schedulerName string, inFlight int)

	// RecordQueueRemaining records how many tasks of the current run are still unclaimed.
	RecordQueueRemaining(schedulerName string, remaining int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(schedulerName string, status TaskStatus, duration time.Duration) {
}
func (m *NilMetrics) RecordTaskPanic(schedulerName string, panicInfo any)      {}
func (m *NilMetrics) RecordTaskFailed(schedulerName string)                    {}
func (m *NilMetrics) RecordInFlight(schedulerName string, inFlight int)        {}
func (m *NilMetrics) RecordQueueRemaining(schedulerName string, remaining int) {}

// =============================================================================
// SchedulerConfig: Configuration for Scheduler
// =============================================================================

// SchedulerConfig holds the collaborators of a Scheduler.
// All fields are optional; nil fields fall back to defaults.
type SchedulerConfig struct {
	// Logger receives task failure and run lifecycle logs. Defaults to DefaultLogger.
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics
}

// DefaultSchedulerConfig returns a config with default handlers.
func DefaultSchedulerConfig() *SchedulerConfig {
	logger := NewDefaultLogger()
	return &SchedulerConfig{
		Logger:       logger,
		PanicHandler: &DefaultPanicHandler{Logger: logger},
		Metrics:      &NilMetrics{},
	}
}
