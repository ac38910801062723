package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Queue runs tasks one at a time, in submission order, on a dedicated goroutine.
// Every Context owns one Queue, which confines all of its store access.
type Queue struct {
	tasks chan func()
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts a queue whose submissions block once buffer tasks are waiting.
func NewQueue(buffer int) *Queue {
	q := &Queue{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for task := range q.tasks {
		q.exec(task)
	}
}

// exec keeps the worker alive when a task panics.
func (q *Queue) exec(task func()) {
	defer func() { _ = recover() }()
	task()
}

// Perform schedules fn and returns without waiting for it.
func (q *Queue) Perform(fn func()) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	q.tasks <- fn
	return nil
}

const (
	taskPending int32 = iota
	taskRunning
	taskCancelled
)

// PerformAndWait schedules fn and waits for its result.
// A task still waiting in the queue when ctx is done is skipped and ctx.Err() is
// returned. A task that has already started runs to completion and its result is
// returned, so nothing fn writes is observed before it finishes.
// It must not be called from a task running on the same queue.
func (q *Queue) PerformAndWait(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	var state atomic.Int32

	err := q.Perform(func() {
		if !state.CompareAndSwap(taskPending, taskRunning) {
			return
		}
		if err := ctx.Err(); err != nil {
			result <- err
			return
		}
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("task panicked: %v", r)
			}
		}()
		result <- fn()
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if state.CompareAndSwap(taskPending, taskCancelled) {
			return ctx.Err()
		}
		return <-result
	}
}

// Close stops accepting tasks and waits for the queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	<-q.done
}
