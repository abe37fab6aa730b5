package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/todogate/todogate/internal/metrics"
)

// ErrQueueFull is returned by Submit when a bounded queue already holds its
// maximum number of pending jobs.
var ErrQueueFull = errors.New("queue full")

const drainPoll = 10 * time.Millisecond

// Job is one deferred unit of work. It runs exactly once, on one worker.
type Job func()

// Option configures a Queue.
type Option func(*Queue)

// WithBound caps the number of pending jobs. n <= 0 leaves the queue unbounded.
func WithBound(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.bound = n
		}
	}
}

// Queue manages the job queue and a fixed set of workers.
//
// Jobs run to completion and workers never exit, so a job blocked forever
// holds its worker forever.
type Queue struct {
	mu      sync.Mutex
	ready   *sync.Cond
	pending []Job
	active  int
	bound   int
	workers int
}

// New starts workers goroutines consuming from a shared FIFO.
// It panics if workers is not positive.
func New(workers int, opts ...Option) *Queue {
	if workers <= 0 {
		panic("queue: worker count must be at least 1")
	}
	q := &Queue{workers: workers}
	q.ready = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	for id := range workers {
		go q.runWorker(id)
	}
	return q
}

// Submit appends job to the queue and wakes one idle worker. It never blocks.
// An unbounded queue always accepts; a bounded one returns ErrQueueFull.
func (q *Queue) Submit(job Job) error {
	q.mu.Lock()
	if q.bound > 0 && len(q.pending) >= q.bound {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.pending = append(q.pending, job)
	metrics.SetQueueDepth(len(q.pending))
	q.mu.Unlock()

	q.ready.Signal()
	return nil
}

// Pending returns the number of jobs waiting for a worker.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain waits until no job is pending or running. It returns ctx.Err() if
// ctx ends first. Jobs submitted while draining are waited for too.
func (q *Queue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for {
		if q.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && q.active == 0
}

// Size returns the number of workers.
func (q *Queue) Size() int {
	return q.workers
}

// Bound returns the pending-job cap, or 0 when unbounded.
func (q *Queue) Bound() int {
	return q.bound
}

// runWorker is a worker loop: takes the queue lock, waits for a job, releases
// the lock and runs the job.
func (q *Queue) runWorker(id int) {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 {
			q.ready.Wait()
		}
		job := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.active++
		metrics.SetQueueDepth(len(q.pending))
		q.mu.Unlock()

		q.run(id, job)

		q.mu.Lock()
		q.active--
		q.mu.Unlock()
	}
}

func (q *Queue) run(id int, job Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker: job panicked", "worker", id, "panic", r)
		}
		metrics.RecordJob(time.Since(start))
	}()

	slog.Debug("worker: received job", "worker", id)
	job()
}
