// Package pool provides a bounded worker pool for strategy fan-out.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrPoolClosed = errors.New("pool is closed")

// Task represents a unit of work.
type Task func(ctx context.Context)

// WorkerPool runs tasks on a fixed set of workers. It is sized to the
// maximum strategy fan-out, so one retrieval round can never spawn an
// unbounded number of goroutines.
type WorkerPool struct {
	tasks chan poolTask
	wg    sync.WaitGroup

	// mu orders Submit sends against the channel close: Close takes the
	// write lock, so no send can be in flight when the channel closes.
	mu     sync.RWMutex
	closed bool

	// Metrics
	submitted atomic.Int64
	completed atomic.Int64
}

type poolTask struct {
	ctx  context.Context
	run  Task
	done chan struct{}
}

// New creates a pool with the given number of workers and queue size.
func New(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}

	p := &WorkerPool{tasks: make(chan poolTask, queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		func() {
			defer close(t.done)
			defer func() {
				// A panicking task must not take the worker down.
				recover()
			}()
			t.run(t.ctx)
		}()
		p.completed.Add(1)
	}
}

// Submit enqueues a task and returns a channel closed on completion.
// Blocks while the queue is full unless ctx is cancelled first.
func (p *WorkerPool) Submit(ctx context.Context, task Task) (<-chan struct{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	t := poolTask{ctx: ctx, run: task, done: make(chan struct{})}
	select {
	case p.tasks <- t:
		p.submitted.Add(1)
		return t.done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns submitted and completed task counts.
func (p *WorkerPool) Stats() (submitted, completed int64) {
	return p.submitted.Load(), p.completed.Load()
}
