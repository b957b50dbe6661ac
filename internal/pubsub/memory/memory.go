// Package memory is an in-process pubsub hub. Every Gateway created from
// the same Hub sees the others' messages, which lets several nodes share
// one process.
package memory

import (
	"context"
	"sync"

	"github.com/RangGames/CreeperPrefixSystem/internal/pubsub"
)

const subscriberBuffer = 256

type Hub struct {
	mu   sync.RWMutex
	subs map[string][]*subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string][]*subscriber)}
}

type subscriber struct {
	messages chan pubsub.Message
	done     chan struct{}
}

func (h *Hub) publish(msg pubsub.Message) int {
	h.mu.RLock()
	subs := append([]*subscriber(nil), h.subs[msg.Channel]...)
	h.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		select {
		case s.messages <- msg:
			delivered++
		case <-s.done:
		default:
			// Full buffer: the message is lost for this subscriber.
		}
	}
	return delivered
}

func (h *Hub) add(s *subscriber, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		h.subs[ch] = append(h.subs[ch], s)
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, subs := range h.subs {
		kept := subs[:0]
		for _, other := range subs {
			if other != s {
				kept = append(kept, other)
			}
		}
		if len(kept) == 0 {
			delete(h.subs, ch)
		} else {
			h.subs[ch] = kept
		}
	}
}

// Gateway is one node's connection to the hub.
type Gateway struct {
	hub *Hub

	mu        sync.Mutex
	connected bool
	subs      []*subscriber
	wg        sync.WaitGroup
}

func (h *Hub) Gateway() *Gateway {
	return &Gateway{hub: h}
}

func (g *Gateway) Connect(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = true
	return nil
}

func (g *Gateway) Publish(_ context.Context, channel string, payload []byte) error {
	g.mu.Lock()
	connected := g.connected
	g.mu.Unlock()
	if !connected {
		return pubsub.ErrNotConnected
	}
	g.hub.publish(pubsub.Message{Channel: channel, Payload: append([]byte(nil), payload...)})
	return nil
}

func (g *Gateway) Subscribe(ctx context.Context, handler pubsub.Handler, channels ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected {
		return pubsub.ErrNotConnected
	}

	s := &subscriber{
		messages: make(chan pubsub.Message, subscriberBuffer),
		done:     make(chan struct{}),
	}
	g.hub.add(s, channels)
	g.subs = append(g.subs, s)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			select {
			case msg := <-s.messages:
				handler(ctx, msg)
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.connected = false
	g.mu.Unlock()

	for _, s := range subs {
		g.hub.remove(s)
		close(s.done)
	}
	g.wg.Wait()
	return nil
}
