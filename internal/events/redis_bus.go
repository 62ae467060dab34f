package events

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus multiplexes any number of named channels over one Redis PubSub
// connection, subscribing and unsubscribing as handlers come and go.
type RedisBus struct {
	client *redis.Client
	log    *zap.Logger

	mu       sync.Mutex
	pubsub   *redis.PubSub
	handlers map[string]func([]byte)
}

func NewRedisBus(client *redis.Client, log *zap.Logger) *RedisBus {
	return &RedisBus{
		client:   client,
		log:      log,
		handlers: make(map[string]func([]byte)),
	}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	b.mu.Lock()
	b.handlers[channel] = handler
	if b.pubsub == nil {
		b.pubsub = b.client.Subscribe(ctx)
		go b.receive(ctx, b.pubsub)
	}
	pubsub := b.pubsub
	b.mu.Unlock()

	return pubsub.Subscribe(ctx, channel)
}

func (b *RedisBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	delete(b.handlers, channel)
	pubsub := b.pubsub
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	return pubsub.Unsubscribe(ctx, channel)
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub == nil {
		return nil
	}
	return b.pubsub.Close()
}

func (b *RedisBus) receive(ctx context.Context, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.mu.Lock()
			handler := b.handlers[msg.Channel]
			b.mu.Unlock()
			if handler == nil {
				continue
			}
			handler([]byte(msg.Payload))
		}
	}
}
