package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is the unit of work. Its identity is its position in the submitted slice.
type Task[T any] func(ctx context.Context) (T, error)

// =============================================================================
// TaskStatus: Outcome classification of a single task
// =============================================================================

type TaskStatus int

const (
	// StatusSucceeded: the task returned a nil error
	StatusSucceeded TaskStatus = iota

	// StatusFailed: the task returned an error
	StatusFailed

	// StatusPanicked: the task panicked; the panic was recovered by its worker
	StatusPanicked
)

func (s TaskStatus) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusPanicked:
		return "panicked"
	default:
		return "unknown"
	}
}

// =============================================================================
// TaskError: the only error kind the scheduler recognizes
// =============================================================================

// ErrNilTask is the cause recorded for a nil entry in the task slice.
var ErrNilTask = errors.New("task is nil")

// TaskError reports that the task at Index failed. Cause is the error the task
// returned, or a description of the recovered panic.
type TaskError struct {
	Index    int
	Cause    error
	Panicked bool
}

func (e *TaskError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("task %d panicked: %v", e.Index, e.Cause)
	}
	return fmt.Sprintf("task %d failed: %v", e.Index, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// Outcome is one entry of the result collection.
type Outcome[T any] struct {
	Index     int
	Status    TaskStatus
	Value     T
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// OK reports whether the task succeeded.
func (o Outcome[T]) OK() bool {
	return o.Status == StatusSucceeded
}

// GenerateRunID returns a short identifier used to correlate the log lines of one Run.
func GenerateRunID() string {
	u := uuid.New().String()
	return "run_" + strings.ReplaceAll(u[:8], "-", "")
}
