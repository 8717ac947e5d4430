package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	core "github.com/datavis-fr/geobatch/core"
)

// recordingMetrics captures every Metrics call
type recordingMetrics struct {
	mu         sync.Mutex
	durations  map[core.TaskStatus]int
	panics     int
	failed     int
	inFlight   []int
	remaining  []int
	schedulers map[string]bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		durations:  make(map[core.TaskStatus]int),
		schedulers: make(map[string]bool),
	}
}

func (m *recordingMetrics) RecordTaskDuration(name string, status core.TaskStatus, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[status]++
	m.schedulers[name] = true
}

func (m *recordingMetrics) RecordTaskPanic(name string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func (m *recordingMetrics) RecordTaskFailed(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

func (m *recordingMetrics) RecordInFlight(name string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = append(m.inFlight, n)
}

func (m *recordingMetrics) RecordQueueRemaining(name string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaining = append(m.remaining, n)
}

var _ core.Metrics = (*recordingMetrics)(nil)
var _ core.Metrics = (*core.NilMetrics)(nil)
var _ core.PanicHandler = (*core.DefaultPanicHandler)(nil)

// TestScheduler_ReportsMetrics verifies the scheduler feeds its Metrics collaborator
// Given: A scheduler with recording metrics and 6 tasks (one error, one panic)
// When: Run is called with concurrency 2
// Then: Durations are recorded per status, failures and panics counted, in-flight never exceeds 2
func TestScheduler_ReportsMetrics(t *testing.T) {
	// Arrange
	metrics := newRecordingMetrics()
	s := core.NewScheduler("metered", &core.SchedulerConfig{
		Logger:       core.NewNoOpLogger(),
		PanicHandler: &recordingPanicHandler{},
		Metrics:      metrics,
	})
	tasks := indexTasks(6, time.Millisecond)
	tasks[2] = func(ctx context.Context) (int, error) { return 0, errors.New("nope") }
	tasks[4] = func(ctx context.Context) (int, error) { panic("kaboom") }

	// Act
	core.Run(context.Background(), s, tasks, 2)

	// Assert
	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	if metrics.durations[core.StatusSucceeded] != 4 {
		t.Errorf("succeeded durations = %d, want 4", metrics.durations[core.StatusSucceeded])
	}
	if metrics.durations[core.StatusFailed] != 1 {
		t.Errorf("failed durations = %d, want 1", metrics.durations[core.StatusFailed])
	}
	if metrics.durations[core.StatusPanicked] != 1 {
		t.Errorf("panicked durations = %d, want 1", metrics.durations[core.StatusPanicked])
	}
	if metrics.failed != 2 {
		t.Errorf("failed = %d, want 2", metrics.failed)
	}
	if metrics.panics != 1 {
		t.Errorf("panics = %d, want 1", metrics.panics)
	}
	if !metrics.schedulers["metered"] {
		t.Errorf("scheduler names = %v, want metered", metrics.schedulers)
	}
	for _, n := range metrics.inFlight {
		if n < 0 || n > 2 {
			t.Fatalf("in-flight sample %d outside [0, 2]", n)
		}
	}
	if len(metrics.remaining) != 7 {
		t.Errorf("queue remaining samples = %d, want one per claim plus the final one (7)", len(metrics.remaining))
	}
	if last := metrics.inFlight[len(metrics.inFlight)-1]; last != 0 {
		t.Errorf("final in-flight sample = %d, want 0", last)
	}
}

// TestNewScheduler_Defaults verifies nil collaborators fall back to defaults
func TestNewScheduler_Defaults(t *testing.T) {
	s := core.NewScheduler("", &core.SchedulerConfig{})

	if s.Name() != "scheduler" {
		t.Fatalf("Name() = %q, want scheduler", s.Name())
	}
	if s.Logger() == nil {
		t.Fatal("Logger() = nil, want default logger")
	}

	cfg := core.DefaultSchedulerConfig()
	if cfg.Logger == nil || cfg.PanicHandler == nil || cfg.Metrics == nil {
		t.Fatalf("DefaultSchedulerConfig() = %+v, want all collaborators set", cfg)
	}
}

// TestDefaultPanicHandler_Logs verifies the default handler logs through its Logger
func TestDefaultPanicHandler_Logs(t *testing.T) {
	logger := &recordingLogger{}
	h := &core.DefaultPanicHandler{Logger: logger}

	h.HandlePanic(context.Background(), "s", 1, 3, "oops", []byte("stack"))

	entries := logger.find("task panic recovered")
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].level != "ERROR" || entries[0].fields["index"] != 3 || entries[0].fields["panic"] != "oops" {
		t.Fatalf("entry = %+v, want ERROR with index 3 and panic oops", entries[0])
	}
}
