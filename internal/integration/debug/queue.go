package debug

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Job is a unit of work executed by the queue worker.
type Job func() (any, error)

// Future is the eventual result of a submitted job.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved(value any, err error) *Future {
	f := newFuture()
	f.resolve(value, err)
	return f
}

func (f *Future) resolve(value any, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job completes or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type queuedJob struct {
	fn     Job
	future *Future
}

// Queue runs jobs one at a time on a single worker goroutine, in submission
// order. The engine is not reentrant, so every engine call goes through it.
//
// Usage:
//
//	q := NewQueue(64)
//	go q.Run(ctx)
//	defer q.Close()
//
//	v, err := q.Submit(func() (any, error) { ... }).Wait(ctx)
type Queue struct {
	queue chan *queuedJob
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	// closeOnce ensures Close is only called once
	closeOnce sync.Once
}

// NewQueue creates a queue that buffers up to size pending jobs.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		queue: make(chan *queuedJob, size),
		done:  make(chan struct{}),
	}
}

// Run processes jobs until ctx is cancelled or Close is called. Jobs still
// pending at that point fail with the cancellation cause, and the queue is
// closed: later submissions fail with ErrQueueClosed.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.shutdown(ctx.Err())
			return
		case <-q.done:
			q.drain(ErrQueueClosed)
			return
		case job := <-q.queue:
			value, err := q.execute(job.fn)
			job.future.resolve(value, err)
		}
	}
}

// execute runs a single job with panic recovery.
func (q *Queue) execute(fn Job) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = fmt.Errorf("job panicked: %w", v)
			case string:
				err = errors.New("job panicked: " + v)
			default:
				err = fmt.Errorf("job panicked: %v", v)
			}
			value = nil
		}
	}()
	return fn()
}

func (q *Queue) drain(err error) {
	for {
		select {
		case job := <-q.queue:
			job.future.resolve(nil, err)
		default:
			return
		}
	}
}

// Submit queues fn and returns its future. After Close the future fails
// with ErrQueueClosed.
func (q *Queue) Submit(fn Job) *Future {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return Resolved(nil, ErrQueueClosed)
	}
	job := &queuedJob{fn: fn, future: newFuture()}
	select {
	case q.queue <- job:
	case <-q.done:
		job.future.resolve(nil, ErrQueueClosed)
	}
	return job.future
}

// Close stops accepting jobs and fails the pending ones. A job already
// running completes normally.
func (q *Queue) Close() {
	q.shutdown(ErrQueueClosed)
}

func (q *Queue) shutdown(cause error) {
	q.closeOnce.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.drain(cause)
	})
}

// IsClosed reports whether Close has been called.
func (q *Queue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
