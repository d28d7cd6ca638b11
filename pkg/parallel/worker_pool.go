// Package parallel runs independent, read-only scans over a shared graph on
// a fixed set of worker goroutines.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
)

// WorkerPool manages a pool of worker goroutines
type WorkerPool struct {
	workers   int
	taskQueue chan func()
	wg        sync.WaitGroup
	once      sync.Once
	mu        sync.RWMutex // Protects taskQueue from concurrent close during send
	closed    bool         // Protected by mu

	panicMu  sync.Mutex
	panicErr error
}

// ErrTooManyWorkers is returned when the worker count exceeds the maximum allowed.
var ErrTooManyWorkers = errors.New("worker count exceeds maximum")

// ErrTaskPanic wraps a value recovered from a panicking task.
var ErrTaskPanic = errors.New("task panicked")

// MaxWorkers is the maximum number of workers allowed in a pool.
const MaxWorkers = math.MaxInt / 2

// DefaultWorkers is the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// NewWorkerPool creates a new worker pool with specified number of workers.
// Non-positive counts default to one worker.
func NewWorkerPool(workers int) (*WorkerPool, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}

	pool := &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*2),
	}

	pool.start()
	return pool, nil
}

func (wp *WorkerPool) start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for task := range wp.taskQueue {
		wp.runTask(task)
	}
}

// runTask keeps a panicking task from killing its worker. The first panic
// is kept and reported by Err.
func (wp *WorkerPool) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			wp.panicMu.Lock()
			if wp.panicErr == nil {
				wp.panicErr = fmt.Errorf("%w: %v", ErrTaskPanic, r)
			}
			wp.panicMu.Unlock()
		}
	}()
	task()
}

// Submit adds a task to the worker pool.
// Returns false if the pool is closed, true if task was submitted.
func (wp *WorkerPool) Submit(task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return false
	}

	wp.taskQueue <- task
	return true
}

// Close stops accepting tasks and waits for queued tasks to finish.
// It is safe to call more than once.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.taskQueue)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}

// Err returns the first recovered task panic, if any.
func (wp *WorkerPool) Err() error {
	wp.panicMu.Lock()
	defer wp.panicMu.Unlock()
	return wp.panicErr
}

// ForEach calls fn(ctx, i) for every i in [0, n) on a pool of the given size
// and waits for all calls to return. Indices that have not started when ctx
// is cancelled or an earlier call failed are skipped. The first error (a
// returned error, a recovered panic, or the context's error) is returned.
func ForEach(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	if workers > n {
		workers = n
	}

	pool, err := NewWorkerPool(workers)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		idx := i
		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			if err := fn(ctx, idx); err != nil {
				fail(err)
			}
		})
	}
	pool.Close()

	if err := pool.Err(); err != nil {
		fail(err)
	}
	if firstErr != nil {
		return firstErr
	}
	// Parent cancellation is reported even when every task had finished.
	return context.Cause(ctx)
}
