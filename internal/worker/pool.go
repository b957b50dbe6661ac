// Package worker runs durable-store and bridge I/O off the caller's
// goroutine on a fixed number of workers. Each worker owns a bounded
// queue; tasks sharing a key always land on the same worker and run in
// submission order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("worker pool closed")

type task struct {
	name string
	fn   func(ctx context.Context) error
	fut  *Future
}

// Future completes when its task has run.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

// Done is closed once the task finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finished or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Pool struct {
	queues []chan task
	next   atomic.Uint64
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	closeMu sync.RWMutex
	closed  bool

	pendingMu sync.Mutex
	idle      *sync.Cond
	pending   int
}

func New(workers, queueSize int, logger zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queues: make([]chan task, workers),
		group:  &errgroup.Group{},
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "worker").Logger(),
	}
	p.idle = sync.NewCond(&p.pendingMu)
	for i := range p.queues {
		queue := make(chan task, queueSize)
		p.queues[i] = queue
		p.group.Go(func() error { return p.loop(queue) })
	}
	p.logger.Debug().Int("workers", workers).Int("queue", queueSize).Msg("worker pool started")
	return p
}

func (p *Pool) loop(queue <-chan task) error {
	for t := range queue {
		err := p.run(t)
		if err != nil {
			p.logger.Error().Err(err).Str("task", t.name).Msg("background task failed")
		}
		t.fut.complete(err)
		p.finish()
	}
	return nil
}

func (p *Pool) run(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", t.name, r)
		}
	}()
	return t.fn(p.ctx)
}

// Submit schedules fn and returns immediately. Failures are only logged.
func (p *Pool) Submit(name string, fn func(ctx context.Context) error) {
	p.Go(name, fn)
}

// SubmitKeyed is Submit with ordering: tasks with the same key run one
// after another in the order they were submitted.
func (p *Pool) SubmitKeyed(key, name string, fn func(ctx context.Context) error) {
	p.GoKeyed(key, name, fn)
}

// Go schedules fn and returns a Future for its completion. It blocks only
// while the chosen queue is full.
func (p *Pool) Go(name string, fn func(ctx context.Context) error) *Future {
	return p.enqueue(int(p.next.Add(1)%uint64(len(p.queues))), name, fn)
}

func (p *Pool) GoKeyed(key, name string, fn func(ctx context.Context) error) *Future {
	return p.enqueue(int(xxhash.Sum64String(key)%uint64(len(p.queues))), name, fn)
}

func (p *Pool) enqueue(shard int, name string, fn func(ctx context.Context) error) *Future {
	fut := newFuture()

	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		p.logger.Warn().Str("task", name).Msg("dropping task submitted after close")
		fut.complete(ErrClosed)
		return fut
	}

	p.pendingMu.Lock()
	p.pending++
	p.pendingMu.Unlock()

	p.queues[shard] <- task{name: name, fn: fn, fut: fut}
	return fut
}

func (p *Pool) finish() {
	p.pendingMu.Lock()
	p.pending--
	if p.pending == 0 {
		p.idle.Broadcast()
	}
	p.pendingMu.Unlock()
}

// Drain blocks until every submitted task has completed.
func (p *Pool) Drain() {
	p.pendingMu.Lock()
	for p.pending > 0 {
		p.idle.Wait()
	}
	p.pendingMu.Unlock()
}

// Close stops accepting tasks, runs what is queued and waits for workers.
func (p *Pool) Close() error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	for _, queue := range p.queues {
		close(queue)
	}
	p.closeMu.Unlock()

	err := p.group.Wait()
	p.cancel()
	p.logger.Debug().Msg("worker pool stopped")
	return err
}
