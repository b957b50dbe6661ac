// Package pubsub is the channel-based broadcast transport between nodes.
// Delivery is at-most-once: no acknowledgement, retry or replay.
package pubsub

import (
	"context"
	"errors"
)

var ErrNotConnected = errors.New("pubsub: not connected")

type Message struct {
	Channel string
	Payload []byte
}

// Handler receives messages one at a time in arrival order.
type Handler func(ctx context.Context, msg Message)

type Gateway interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers messages on channels to handler until Close.
	Subscribe(ctx context.Context, handler Handler, channels ...string) error
	Close() error
}
