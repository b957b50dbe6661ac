// Package redis implements the pubsub gateway on Redis PUBLISH/SUBSCRIBE.
package redis

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/config"
	"github.com/RangGames/CreeperPrefixSystem/internal/pubsub"
)

type Gateway struct {
	opts   *goredis.Options
	logger zerolog.Logger

	mu     sync.Mutex
	client *goredis.Client
	subs   []*goredis.PubSub
	wg     sync.WaitGroup
}

func New(cfg *config.Config, logger zerolog.Logger) *Gateway {
	return &Gateway{
		opts: &goredis.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		},
		logger: logger.With().Str("component", "redis").Str("addr", cfg.RedisAddr).Logger(),
	}
}

// Connect opens the client and checks the server answers.
func (g *Gateway) Connect(ctx context.Context) error {
	client := goredis.NewClient(g.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to reach redis at %s: %w", g.opts.Addr, err)
	}

	g.mu.Lock()
	g.client = client
	g.mu.Unlock()
	g.logger.Info().Msg("connected to redis")
	return nil
}

func (g *Gateway) conn() (*goredis.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil, pubsub.ErrNotConnected
	}
	return g.client, nil
}

func (g *Gateway) Publish(ctx context.Context, channel string, payload []byte) error {
	client, err := g.conn()
	if err != nil {
		return err
	}
	if err := client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (g *Gateway) Subscribe(ctx context.Context, handler pubsub.Handler, channels ...string) error {
	client, err := g.conn()
	if err != nil {
		return err
	}

	ps := client.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so no early message is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("failed to subscribe to %v: %w", channels, err)
	}

	g.mu.Lock()
	g.subs = append(g.subs, ps)
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for msg := range ps.Channel() {
			handler(ctx, pubsub.Message{Channel: msg.Channel, Payload: []byte(msg.Payload)})
		}
		g.logger.Debug().Strs("channels", channels).Msg("subscription closed")
	}()
	g.logger.Info().Strs("channels", channels).Msg("subscribed")
	return nil
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	subs, client := g.subs, g.client
	g.subs, g.client = nil, nil
	g.mu.Unlock()

	for _, ps := range subs {
		if err := ps.Close(); err != nil {
			g.logger.Warn().Err(err).Msg("failed to close subscription")
		}
	}
	g.wg.Wait()
	if client == nil {
		return nil
	}
	return client.Close()
}
