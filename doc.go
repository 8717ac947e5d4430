// Package geobatch runs batches of independent tasks with a bounded number in
// flight, and uses that to geocode address lists against rate-limited APIs.
//
// The scheduler is the one reusable engine behind the school-map demo: many
// addresses must be resolved through Nominatim without overwhelming it, and a
// failed lookup must not take the rest of the batch down with it.
//
// # Quick Start
//
//	tasks := make([]geobatch.Task[int], 10)
//	for i := range tasks {
//		tasks[i] = func(ctx context.Context) (int, error) {
//			return i * i, nil
//		}
//	}
//
//	report := geobatch.Run(context.Background(), tasks, 3)
//	for _, o := range report.Sorted() {
//		fmt.Println(o.Index, o.Status, o.Value)
//	}
//
// # Key Concepts
//
// Task: a func(ctx) (T, error). Its identity is its index in the submitted slice.
//
// Worker: a goroutine that repeatedly claims the next unclaimed index from a
// shared atomic cursor and executes it. Run starts min(concurrency, len(tasks))
// workers and returns when all of them have drained the queue.
//
// Report: the result collection. Outcomes arrive in completion order and
// each carries Index and Status, so failed tasks are distinguishable from
// tasks that were never attempted. Sorted restores submission order.
//
// # Failure Policy
//
// Errors and panics are caught per task, logged, and recorded as failed
// outcomes. Run itself never fails. Timeouts, retries and rate limiting are
// applied by the caller with core.WithTimeout, core.WithRetry and
// core.WithRateLimit before submission.
//
// # Packages
//
//   - core: scheduler, report, task wrappers, logging and metrics interfaces
//   - geocode: Nominatim client, caches and the batch geocoding service
//   - heatmap: binning of geocoded points into a lat/lon grid
//   - observability/prometheus: Prometheus adapters for core.Metrics and geocoder stats
package geobatch
