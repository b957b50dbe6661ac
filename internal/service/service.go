// Package service holds the attribute, title, progression, ranking and
// season logic. In-memory state is authoritative; durable writes run on
// the worker pool and only log on failure.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/constants"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/events"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

// Publisher carries local mutations to the other nodes.
type Publisher interface {
	Enabled() bool
	PublishModifierAdd(m domain.StatModifier)
	PublishModifierRemove(player uuid.UUID, statID, sourceID string)
	PublishBaseSet(player uuid.UUID, statID string, value float64)
	PublishHint(hint string)
}

// NopPublisher is used when cross-node sync is off.
type NopPublisher struct{}

func (NopPublisher) Enabled() bool                                   { return false }
func (NopPublisher) PublishModifierAdd(domain.StatModifier)          {}
func (NopPublisher) PublishModifierRemove(uuid.UUID, string, string) {}
func (NopPublisher) PublishBaseSet(uuid.UUID, string, float64)       {}
func (NopPublisher) PublishHint(string)                              {}

// CommandDispatcher executes a rendered directive.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, command string) error
}

// await runs fn on the pool behind every task already queued for key and
// waits for it. It must not be called from a pool task.
func await[T any](ctx context.Context, pool *worker.Pool, key, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	fut := pool.GoKeyed(key, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err := fut.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// playerLocks serializes multi-step updates per player.
type playerLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*playerLock
}

type playerLock struct {
	mu   sync.Mutex
	refs int
}

func newPlayerLocks() *playerLocks {
	return &playerLocks{locks: make(map[uuid.UUID]*playerLock)}
}

func (l *playerLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	pl, ok := l.locks[id]
	if !ok {
		pl = &playerLock{}
		l.locks[id] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// proceed dispatches a cancellable hook and reports whether the change may
// go ahead. A failed dispatch counts as a cancel.
func proceed[E any, P interface {
	*E
	Cancelled() bool
}](ctx context.Context, logger zerolog.Logger, action string, hook *events.Hook[E], e P) bool {
	ctx, cancel := context.WithTimeout(ctx, constants.HookTimeout)
	defer cancel()
	if err := hook.Dispatch(ctx, e); err != nil {
		logger.Warn().Err(err).Str("action", action).Msg("hook dispatch failed, treating as cancelled")
		return false
	}
	if e.Cancelled() {
		logger.Debug().Str("action", action).Msg("cancelled by hook")
		return false
	}
	return true
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
