package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/authority"
	"github.com/RangGames/CreeperPrefixSystem/internal/constants"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/live"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

// EffectApplier applies and clears the effects of a title or set. Every
// effect is keyed by a source tag so clearing undoes exactly what the same
// tag applied.
type EffectApplier struct {
	stats    *StatService
	exec     *authority.Executor
	pool     *worker.Pool
	players  live.Directory
	commands CommandDispatcher
	logger   zerolog.Logger
}

func NewEffectApplier(
	stats *StatService,
	exec *authority.Executor,
	pool *worker.Pool,
	players live.Directory,
	commands CommandDispatcher,
	logger zerolog.Logger,
) *EffectApplier {
	return &EffectApplier{
		stats:    stats,
		exec:     exec,
		pool:     pool,
		players:  players,
		commands: commands,
		logger:   logger.With().Str("component", "effects").Logger(),
	}
}

func TitleSource(titleID string) string { return constants.TitleSourcePrefix + titleID }
func SetSource(setID string) string     { return constants.SetSourcePrefix + setID }

func (a *EffectApplier) Apply(ctx context.Context, player uuid.UUID, source string, effects []domain.Effect) {
	for _, e := range effects {
		switch e := e.(type) {
		case domain.StatModEffect:
			a.stats.AddModifier(ctx, player, e.StatID, source, e.Op, e.Value, nil)
		case domain.PotionEffect:
			a.onPlayer(player, func(p live.Player) { p.ApplyPotion(e.Kind, e.Level) })
		case domain.AttributeEffect:
			a.onPlayer(player, func(p live.Player) { p.SetAttribute(e.Attribute, e.Value) })
		case domain.CommandEffect:
			a.runCommand(player, e.Template)
		}
	}
}

// Clear reverses Apply. Command effects are never re-issued or undone.
func (a *EffectApplier) Clear(ctx context.Context, player uuid.UUID, source string, effects []domain.Effect) {
	for _, e := range effects {
		switch e := e.(type) {
		case domain.StatModEffect:
			a.stats.RemoveModifier(ctx, player, e.StatID, source)
		case domain.PotionEffect:
			a.onPlayer(player, func(p live.Player) { p.ClearPotion(e.Kind) })
		case domain.AttributeEffect:
			a.onPlayer(player, func(p live.Player) { p.ResetAttribute(e.Attribute) })
		case domain.CommandEffect:
		}
	}
}

// onPlayer runs fn on the authority context when the player is online.
func (a *EffectApplier) onPlayer(player uuid.UUID, fn func(live.Player)) {
	a.exec.Post(func(ctx context.Context) {
		if p, ok := a.players.Lookup(player); ok {
			fn(p)
		}
	})
}

func (a *EffectApplier) runCommand(player uuid.UUID, template string) {
	name := player.String()
	if p, ok := a.players.Lookup(player); ok && p.Name() != "" {
		name = p.Name()
	}
	command := strings.ReplaceAll(template, constants.PlayerPlaceholder, name)

	a.pool.Submit("dispatch command", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, constants.ConsoleTimeout)
		defer cancel()
		return a.commands.Dispatch(ctx, command)
	})
	a.logger.Debug().Str("player", player.String()).Str("command", command).Msg("command effect dispatched")
}

// notifyPlayer sends msg to the player when online.
func (a *EffectApplier) notifyPlayer(player uuid.UUID, msg string) {
	a.onPlayer(player, func(p live.Player) { p.SendMessage(msg) })
}
