package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueClosed is returned by Dequeue after Close; it marks a normal
// shutdown, not a failure.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a bounded in-memory task queue with context-aware operations.
type Queue struct {
	ch      chan Task
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 100
	}
	return &Queue{ch: make(chan Task, capacity)}
}

// TryEnqueue pushes a task without blocking. It reports false when the queue
// is full so the API can answer with backpressure instead of hanging.
func (q *Queue) TryEnqueue(task Task) bool {
	select {
	case q.ch <- task:
		return true
	default:
		return false
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case <-ctx.Done():
		return Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return Task{}, ErrQueueClosed
		}
		return task, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

// Depth reports how many tasks are waiting.
func (q *Queue) Depth() int {
	return len(q.ch)
}
