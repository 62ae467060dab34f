package events

import "context"

// Well-known channels
const (
	ChannelTrigger      = "trigger"
	ChannelNotifyPrefix = "notify:"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber delivers raw payloads per named channel. Implementations own the
// receive loop; handlers run on that loop and must not block for long.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error
	Unsubscribe(ctx context.Context, channel string) error
}

// Bus combines both directions of a shared pub/sub service.
type Bus interface {
	Publisher
	Subscriber
}
