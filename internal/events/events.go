// Package events defines the extension points fired around title, set,
// ranking and collection changes. Handlers always run on the authority
// goroutine; cancellable events are consulted before the change commits.
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/RangGames/CreeperPrefixSystem/internal/authority"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
)

type Cancellable struct {
	cancelled bool
}

func (c *Cancellable) Cancel()             { c.cancelled = true }
func (c *Cancellable) SetCancelled(v bool) { c.cancelled = v }
func (c *Cancellable) Cancelled() bool     { return c.cancelled }

type TitleGrant struct {
	Cancellable
	PlayerID uuid.UUID
	Title    domain.TitleDefinition
}

type TitleEquip struct {
	Cancellable
	PlayerID uuid.UUID
	Title    domain.TitleDefinition
	Previous string
}

type TitleUnequip struct {
	Cancellable
	PlayerID uuid.UUID
	Title    domain.TitleDefinition
}

type TitleRevoke struct {
	Cancellable
	PlayerID uuid.UUID
	Title    domain.TitleDefinition
}

type SetActivate struct {
	Cancellable
	PlayerID uuid.UUID
	Set      domain.SetDefinition
}

type SetDeactivate struct {
	PlayerID uuid.UUID
	Set      domain.SetDefinition
}

// WeeklyRankEvaluate lets handlers reorder, filter or annotate Standings
// before they are published.
type WeeklyRankEvaluate struct {
	Metric    string
	WeekKey   string
	Standings []domain.WeeklyStanding
}

type AchievementUnlock struct {
	Cancellable
	PlayerID        uuid.UUID
	Achievement     domain.AchievementDefinition
	CompletionOrder int
	Announce        bool
}

type CollectionRegister struct {
	Cancellable
	PlayerID      uuid.UUID
	Key           string
	PreviousCount int
	PlayerRank    int
	XPReward      int
	GrantXP       bool
	Announce      bool
}

type Handler[E any] func(ctx context.Context, e *E)

type Hook[E any] struct {
	exec     *authority.Executor
	mu       sync.RWMutex
	handlers []Handler[E]
}

func (h *Hook[E]) Subscribe(fn Handler[E]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

// Dispatch runs every handler in subscription order on the authority
// goroutine and returns once they are done.
func (h *Hook[E]) Dispatch(ctx context.Context, e *E) error {
	h.mu.RLock()
	handlers := append([]Handler[E](nil), h.handlers...)
	h.mu.RUnlock()
	if len(handlers) == 0 {
		return nil
	}
	return h.exec.Call(ctx, func(ctx context.Context) error {
		for _, fn := range handlers {
			fn(ctx, e)
		}
		return nil
	})
}

type Bus struct {
	TitleGrant         *Hook[TitleGrant]
	TitleEquip         *Hook[TitleEquip]
	TitleUnequip       *Hook[TitleUnequip]
	TitleRevoke        *Hook[TitleRevoke]
	SetActivate        *Hook[SetActivate]
	SetDeactivate      *Hook[SetDeactivate]
	WeeklyRankEvaluate *Hook[WeeklyRankEvaluate]
	AchievementUnlock  *Hook[AchievementUnlock]
	CollectionRegister *Hook[CollectionRegister]
}

func NewBus(exec *authority.Executor) *Bus {
	return &Bus{
		TitleGrant:         &Hook[TitleGrant]{exec: exec},
		TitleEquip:         &Hook[TitleEquip]{exec: exec},
		TitleUnequip:       &Hook[TitleUnequip]{exec: exec},
		TitleRevoke:        &Hook[TitleRevoke]{exec: exec},
		SetActivate:        &Hook[SetActivate]{exec: exec},
		SetDeactivate:      &Hook[SetDeactivate]{exec: exec},
		WeeklyRankEvaluate: &Hook[WeeklyRankEvaluate]{exec: exec},
		AchievementUnlock:  &Hook[AchievementUnlock]{exec: exec},
		CollectionRegister: &Hook[CollectionRegister]{exec: exec},
	}
}
