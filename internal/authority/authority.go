// Package authority provides the single-threaded context on which hooks
// and live-player side effects run. Any goroutine can hand work to it and
// block for the result.
package authority

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var ErrStopped = errors.New("authority executor stopped")

type marker struct{}

// OnAuthority reports whether ctx was issued by the executor, i.e. the
// caller is already running on the authority goroutine.
func OnAuthority(ctx context.Context) bool {
	v, _ := ctx.Value(marker{}).(bool)
	return v
}

type Executor struct {
	tasks    chan func()
	stop     chan struct{}
	done     chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
	logger   zerolog.Logger
}

func New(backlog int, logger zerolog.Logger) *Executor {
	return &Executor{
		tasks:  make(chan func(), backlog),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "authority").Logger(),
	}
}

// Start launches the authority goroutine. Calling it twice is a no-op.
func (e *Executor) Start() {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.started {
		return
	}
	e.started = true
	go e.run()
}

func (e *Executor) run() {
	defer close(e.done)
	for {
		select {
		case fn := <-e.tasks:
			e.safe(fn)
		case <-e.stop:
			return
		}
	}
}

func (e *Executor) safe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("authority task panicked")
		}
	}()
	fn()
}

// Stop ends the loop. Tasks still queued are discarded.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
		e.startMu.Lock()
		started := e.started
		e.startMu.Unlock()
		if started {
			<-e.done
		}
	})
}

// Post schedules fn on the authority goroutine without waiting.
func (e *Executor) Post(fn func(ctx context.Context)) {
	task := func() { fn(context.WithValue(context.Background(), marker{}, true)) }
	select {
	case e.tasks <- task:
	case <-e.stop:
		e.logger.Warn().Msg("dropping task posted after stop")
	}
}

// Call runs fn on the authority goroutine and waits for it. When ctx is
// already an authority context fn runs inline.
func (e *Executor) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if OnAuthority(ctx) {
		return fn(ctx)
	}

	result := make(chan error, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("authority call panicked: %v", r)
			}
		}()
		result <- fn(context.WithValue(ctx, marker{}, true))
	}

	select {
	case e.tasks <- task:
	case <-e.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-e.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
