package notify

import (
	"context"
	"sync"

	"github.com/cashtoken-io/backend/internal/events"
	"go.uber.org/zap"
)

// Callback receives a change payload for a scope. A callback returning an
// error (typically a dead connection) is dropped; delivery to the remaining
// observers of the scope continues.
type Callback func(payload []byte) error

// Notifier is a scope-keyed observer registry. Without a bus it fans out
// in-process. With a bus, notifications travel through the shared pub/sub
// channel and the process's own subscription performs the local fan-out, so
// single-node and clustered deployments run the same delivery path.
type Notifier struct {
	bus events.Bus
	log *zap.Logger

	mu        sync.Mutex
	observers map[string]map[string]Callback
}

func New(log *zap.Logger) *Notifier {
	return &Notifier{
		log:       log,
		observers: make(map[string]map[string]Callback),
	}
}

func NewClustered(bus events.Bus, log *zap.Logger) *Notifier {
	n := New(log)
	n.bus = bus
	return n
}

func (n *Notifier) AddObserver(ctx context.Context, scope, id string, cb Callback) {
	n.mu.Lock()
	scoped, ok := n.observers[scope]
	if !ok {
		scoped = make(map[string]Callback)
		n.observers[scope] = scoped
	}
	first := len(scoped) == 0
	scoped[id] = cb
	n.mu.Unlock()

	if first && n.bus != nil {
		if err := n.bus.Subscribe(ctx, channelFor(scope), func(payload []byte) {
			n.deliver(scope, payload)
		}); err != nil {
			n.log.Error("scope subscribe failed", zap.String("scope", scope), zap.Error(err))
		}
	}
}

func (n *Notifier) RemoveObserver(ctx context.Context, scope, id string) {
	n.mu.Lock()
	scoped := n.observers[scope]
	delete(scoped, id)
	last := scoped != nil && len(scoped) == 0
	if last {
		delete(n.observers, scope)
	}
	n.mu.Unlock()

	if last && n.bus != nil {
		if err := n.bus.Unsubscribe(ctx, channelFor(scope)); err != nil {
			n.log.Warn("scope unsubscribe failed", zap.String("scope", scope), zap.Error(err))
		}
	}
}

// NotifyObservers tells every observer of scope that something changed.
func (n *Notifier) NotifyObservers(ctx context.Context, scope string, payload []byte) {
	if n.bus != nil {
		if err := n.bus.Publish(ctx, channelFor(scope), payload); err != nil {
			n.log.Error("notify publish failed", zap.String("scope", scope), zap.Error(err))
		}
		return
	}
	n.deliver(scope, payload)
}

func (n *Notifier) deliver(scope string, payload []byte) {
	n.mu.Lock()
	scoped := n.observers[scope]
	callbacks := make(map[string]Callback, len(scoped))
	for id, cb := range scoped {
		callbacks[id] = cb
	}
	n.mu.Unlock()

	for id, cb := range callbacks {
		if err := cb(payload); err != nil {
			n.log.Debug("observer dropped", zap.String("scope", scope), zap.String("id", id), zap.Error(err))
			n.RemoveObserver(context.Background(), scope, id)
		}
	}
}

func channelFor(scope string) string {
	return events.ChannelNotifyPrefix + scope
}
