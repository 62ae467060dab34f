package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFanout(t *testing.T) {
	n := New(zap.NewNop())
	ctx := context.Background()

	var got []string
	n.AddObserver(ctx, "token:1", "a", func(p []byte) error {
		got = append(got, "a:"+string(p))
		return nil
	})
	n.AddObserver(ctx, "token:1", "b", func(p []byte) error {
		got = append(got, "b:"+string(p))
		return nil
	})
	n.AddObserver(ctx, "token:2", "c", func(p []byte) error {
		got = append(got, "c:"+string(p))
		return nil
	})

	n.NotifyObservers(ctx, "token:1", []byte("x"))

	assert.ElementsMatch(t, []string{"a:x", "b:x"}, got)
}

func TestRemoveObserver(t *testing.T) {
	n := New(zap.NewNop())
	ctx := context.Background()

	calls := 0
	n.AddObserver(ctx, "token:1", "a", func(p []byte) error {
		calls++
		return nil
	})
	n.RemoveObserver(ctx, "token:1", "a")
	n.NotifyObservers(ctx, "token:1", []byte("x"))

	assert.Zero(t, calls)
}

func TestFailingObserverIsDroppedOthersSurvive(t *testing.T) {
	n := New(zap.NewNop())
	ctx := context.Background()

	okCalls := 0
	badCalls := 0
	n.AddObserver(ctx, "token:1", "ok", func(p []byte) error {
		okCalls++
		return nil
	})
	n.AddObserver(ctx, "token:1", "bad", func(p []byte) error {
		badCalls++
		return errors.New("connection closed")
	})

	n.NotifyObservers(ctx, "token:1", []byte("x"))
	n.NotifyObservers(ctx, "token:1", []byte("y"))

	assert.Equal(t, 2, okCalls)
	assert.Equal(t, 1, badCalls, "failing observer must be removed after the first error")
}

// fakeBus is an in-memory Bus that loops published payloads back to the
// publishing process's own subscription, like a real pub/sub service does.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]func([]byte)
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]func([]byte))}
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	h := b.handlers[channel]
	b.mu.Unlock()
	if h != nil {
		h(payload)
	}
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string, handler func([]byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = handler
	return nil
}

func (b *fakeBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, channel)
	return nil
}

func TestClusteredDeliveryUsesBusRoundTrip(t *testing.T) {
	bus := newFakeBus()
	n := NewClustered(bus, zap.NewNop())
	ctx := context.Background()

	var got string
	n.AddObserver(ctx, "token:1", "a", func(p []byte) error {
		got = string(p)
		return nil
	})

	// publishing process receives its own notification through the bus,
	// not through a local shortcut
	n.NotifyObservers(ctx, "token:1", []byte("payload"))
	require.Equal(t, "payload", got)

	// last removal unsubscribes the scope channel
	n.RemoveObserver(ctx, "token:1", "a")
	bus.mu.Lock()
	_, subscribed := bus.handlers["notify:token:1"]
	bus.mu.Unlock()
	assert.False(t, subscribed)
}
