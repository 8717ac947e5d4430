package geobatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datavis-fr/geobatch/core"
)

// TestRun_DefaultSchedulerCoversEveryTask verifies the package-level entry point
// Given: 8 tasks where index 5 fails
// When: Run is called with concurrency 3
// Then: Every index has exactly one outcome and only index 5 failed
func TestRun_DefaultSchedulerCoversEveryTask(t *testing.T) {
	// Arrange
	tasks := make([]Task[int], 8)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (int, error) {
			if i == 5 {
				return 0, errors.New("no match")
			}
			return i, nil
		}
	}

	// Act
	report := Run(context.Background(), tasks, 3)

	// Assert
	if report.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", report.Len())
	}
	if report.Workers != 3 {
		t.Fatalf("Workers = %d, want 3", report.Workers)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Index != 5 {
		t.Fatalf("Failed() = %+v, want only index 5", failed)
	}
	var te *TaskError
	if !errors.As(failed[0].Err, &te) || te.Index != 5 {
		t.Fatalf("failure error = %v, want *TaskError for index 5", failed[0].Err)
	}
	if missing := report.Missing(); len(missing) != 0 {
		t.Fatalf("Missing() = %v, want none", missing)
	}
}

// TestRunWith_UsesGivenScheduler verifies explicit schedulers are honored
// Given: A named scheduler with a no-op logger
// When: RunWith executes two rate-limited tasks wrapped in timeouts
// Then: The report carries the scheduler name and both values
func TestRunWith_UsesGivenScheduler(t *testing.T) {
	// Arrange
	s := NewScheduler("root-test", &SchedulerConfig{Logger: core.NewNoOpLogger()})
	tasks := []Task[string]{
		core.WithTimeout(func(ctx context.Context) (string, error) { return "a", nil }, time.Second),
		core.WithTimeout(func(ctx context.Context) (string, error) { return "b", nil }, time.Second),
	}

	// Act
	report := RunWith(context.Background(), s, tasks, 1)

	// Assert
	if report.Scheduler != "root-test" {
		t.Fatalf("Scheduler = %q, want root-test", report.Scheduler)
	}
	values := report.Values()
	if len(values) != 2 || values[0] != "a" || values[1] != "b" {
		t.Fatalf("Values() = %v, want [a b] in FIFO order for one worker", values)
	}
}

// TestStatusReexports verifies the re-exported constants match core
func TestStatusReexports(t *testing.T) {
	if StatusSucceeded != core.StatusSucceeded || StatusFailed != core.StatusFailed || StatusPanicked != core.StatusPanicked {
		t.Fatal("status constants diverge from core")
	}
	if !errors.Is(ErrNilTask, core.ErrNilTask) {
		t.Fatal("ErrNilTask diverges from core")
	}
}
