// Package netsync replicates stat mutations between nodes and relays
// season and weekly hints. Messages carry the sender's node id so a node
// never applies its own broadcasts.
package netsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/constants"
	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/pubsub"
	"github.com/RangGames/CreeperPrefixSystem/internal/worker"
)

const (
	TypeModifierAdd    = "stat-modifier-add"
	TypeModifierRemove = "stat-modifier-remove"
	TypeBaseSet        = "stat-base-set"
)

// Envelope is the JSON form of a replicated stat mutation.
type Envelope struct {
	Type     string   `json:"type"`
	Origin   string   `json:"originNodeId"`
	Player   string   `json:"uuid"`
	Stat     string   `json:"stat"`
	Source   string   `json:"source,omitempty"`
	Op       string   `json:"op,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	ExpireAt *int64   `json:"expireAt,omitempty"`
}

// StatApplier receives mutations made on other nodes.
type StatApplier interface {
	ApplyNetworkModifier(m domain.StatModifier)
	ApplyNetworkModifierRemoval(player uuid.UUID, statID, sourceID string) bool
	ApplyNetworkBase(player uuid.UUID, statID string, value float64)
}

type HintHandler func(ctx context.Context, hint string)

type Bridge struct {
	gateway   pubsub.Gateway
	pool      *worker.Pool
	nodeID    string
	enabled   bool
	broadcast string
	request   string
	logger    zerolog.Logger

	active atomic.Bool

	mu    sync.RWMutex
	stats StatApplier
	hints []HintHandler
}

func New(cfg *config.Config, gateway pubsub.Gateway, pool *worker.Pool, logger zerolog.Logger) *Bridge {
	return &Bridge{
		gateway:   gateway,
		pool:      pool,
		nodeID:    cfg.NodeID,
		enabled:   cfg.SyncEnabled,
		broadcast: cfg.BroadcastChannel,
		request:   cfg.RequestChannel,
		logger:    logger.With().Str("component", "netsync").Str("node", cfg.NodeID).Logger(),
	}
}

// Bind sets where incoming messages go. It must be called before Start.
func (b *Bridge) Bind(stats StatApplier, hints ...HintHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = stats
	b.hints = append(b.hints, hints...)
}

// Start connects and subscribes. Failures leave the node in single-node
// mode and are not returned.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.enabled {
		b.logger.Info().Msg("network sync disabled, running single-node")
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, constants.BridgeDialTimeout)
	defer cancel()
	if err := b.gateway.Connect(dialCtx); err != nil {
		b.logger.Warn().Err(err).Msg("pub/sub unavailable, running single-node")
		return nil
	}
	if err := b.gateway.Subscribe(context.Background(), b.receive, b.broadcast, b.request); err != nil {
		b.logger.Warn().Err(err).Msg("subscribe failed, running single-node")
		b.gateway.Close()
		return nil
	}

	b.active.Store(true)
	b.logger.Info().Str("broadcast", b.broadcast).Str("request", b.request).Msg("network sync active")
	return nil
}

func (b *Bridge) Close() error {
	if !b.active.Swap(false) {
		return nil
	}
	return b.gateway.Close()
}

func (b *Bridge) Active() bool {
	return b.active.Load()
}

// Enabled reports whether outgoing messages are sent.
func (b *Bridge) Enabled() bool {
	return b.Active()
}

func (b *Bridge) NodeID() string {
	return b.nodeID
}

func (b *Bridge) PublishModifierAdd(m domain.StatModifier) {
	env := Envelope{
		Type:   TypeModifierAdd,
		Player: m.PlayerID.String(),
		Stat:   m.StatID,
		Source: m.SourceID,
		Op:     string(m.Op),
		Value:  &m.Value,
	}
	if m.ExpireAt != nil {
		ms := m.ExpireAt.UnixMilli()
		env.ExpireAt = &ms
	}
	b.publishEnvelope(env)
}

func (b *Bridge) PublishModifierRemove(player uuid.UUID, statID, sourceID string) {
	b.publishEnvelope(Envelope{
		Type:   TypeModifierRemove,
		Player: player.String(),
		Stat:   statID,
		Source: sourceID,
	})
}

func (b *Bridge) PublishBaseSet(player uuid.UUID, statID string, value float64) {
	b.publishEnvelope(Envelope{
		Type:   TypeBaseSet,
		Player: player.String(),
		Stat:   statID,
		Value:  &value,
	})
}

// PublishHint sends a plain-text hint such as "season:RUNNING".
func (b *Bridge) PublishHint(hint string) {
	b.publish("hint", []byte(hint))
}

func (b *Bridge) publishEnvelope(env Envelope) {
	env.Origin = b.nodeID
	payload, err := json.Marshal(env)
	if err != nil {
		b.logger.Error().Err(err).Str("type", env.Type).Msg("failed to encode message")
		return
	}
	b.publish(env.Type, payload)
}

func (b *Bridge) publish(kind string, payload []byte) {
	if !b.Active() {
		return
	}
	b.pool.SubmitKeyed(b.broadcast, "publish "+kind, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, constants.BridgeDialTimeout)
		defer cancel()
		return b.gateway.Publish(ctx, b.broadcast, payload)
	})
}

// receive handles one inbound message. Problems are logged and the
// message dropped.
func (b *Bridge) receive(ctx context.Context, msg pubsub.Message) {
	payload := bytes.TrimSpace(msg.Payload)
	if len(payload) == 0 {
		return
	}
	if payload[0] != '{' {
		b.dispatchHint(ctx, string(payload))
		return
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed message")
		return
	}
	if strings.EqualFold(env.Origin, b.nodeID) {
		return
	}
	if err := b.apply(env); err != nil {
		b.logger.Warn().Err(err).Str("channel", msg.Channel).Str("type", env.Type).Str("origin", env.Origin).Msg("dropping message")
	}
}

func (b *Bridge) apply(env Envelope) error {
	b.mu.RLock()
	stats := b.stats
	b.mu.RUnlock()
	if stats == nil {
		return fmt.Errorf("no stat applier bound")
	}

	player, err := uuid.Parse(env.Player)
	if err != nil {
		return fmt.Errorf("invalid player id %q: %w", env.Player, err)
	}
	if env.Stat == "" {
		return fmt.Errorf("missing stat")
	}

	switch env.Type {
	case TypeModifierAdd:
		if env.Source == "" || env.Value == nil {
			return fmt.Errorf("incomplete modifier")
		}
		op, err := domain.ParseOperation(env.Op)
		if err != nil {
			return err
		}
		m := domain.StatModifier{
			PlayerID: player,
			StatID:   env.Stat,
			SourceID: env.Source,
			Op:       op,
			Value:    *env.Value,
		}
		if env.ExpireAt != nil {
			t := time.UnixMilli(*env.ExpireAt).UTC()
			m.ExpireAt = &t
		}
		stats.ApplyNetworkModifier(m)
	case TypeModifierRemove:
		if env.Source == "" {
			return fmt.Errorf("missing source")
		}
		stats.ApplyNetworkModifierRemoval(player, env.Stat, env.Source)
	case TypeBaseSet:
		if env.Value == nil {
			return fmt.Errorf("missing value")
		}
		stats.ApplyNetworkBase(player, env.Stat, *env.Value)
	default:
		return fmt.Errorf("unknown message type %q", env.Type)
	}
	b.logger.Debug().Str("type", env.Type).Str("origin", env.Origin).Str("player", env.Player).Str("stat", env.Stat).Msg("applied network message")
	return nil
}

func (b *Bridge) dispatchHint(ctx context.Context, hint string) {
	b.mu.RLock()
	handlers := append([]HintHandler(nil), b.hints...)
	b.mu.RUnlock()
	b.logger.Debug().Str("hint", hint).Msg("hint received")
	for _, fn := range handlers {
		fn(ctx, hint)
	}
}
