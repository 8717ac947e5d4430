package core

import (
	"sync/atomic"
)

// taskQueue is the ordered sequence of tasks consumed front-to-back by competing
// workers through a shared cursor. It lives for exactly one Run.
type taskQueue[T any] struct {
	tasks  []Task[T]
	cursor atomic.Int64
}

func newTaskQueue[T any](tasks []Task[T]) *taskQueue[T] {
	return &taskQueue[T]{tasks: tasks}
}

// Claim atomically reserves the next unclaimed index. ok is false once the
// queue is exhausted; the worker that sees it terminates.
func (q *taskQueue[T]) Claim() (index int, task Task[T], ok bool) {
	idx := q.cursor.Add(1) - 1
	if idx >= int64(len(q.tasks)) {
		return int(idx), nil, false
	}
	return int(idx), q.tasks[idx], true
}

// Remaining returns how many tasks have not been claimed yet.
func (q *taskQueue[T]) Remaining() int {
	claimed := q.cursor.Load()
	if claimed >= int64(len(q.tasks)) {
		return 0
	}
	return len(q.tasks) - int(claimed)
}

// Len returns the total number of submitted tasks.
func (q *taskQueue[T]) Len() int {
	return len(q.tasks)
}
