package knowledgegraph

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nesthivep/kgml/api/schemas"
)

// HookFunc is a callback invoked after a graph mutation has succeeded. The
// payload describes the mutation; hooks must treat it as read-only.
type HookFunc func(event schemas.Event, payload map[string]any)

// HookBus is a small synchronous pub/sub dispatcher for graph lifecycle
// events. Handlers run in registration order on the publishing goroutine.
// A panicking handler is recovered and logged; it can never undo or block
// the mutation that triggered it.
type HookBus struct {
	mu   sync.RWMutex
	subs map[schemas.Event][]HookFunc
	log  *zap.Logger
}

// NewHookBus creates an empty bus.
func NewHookBus(logger *zap.Logger) *HookBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HookBus{
		subs: make(map[schemas.Event][]HookFunc),
		log:  logger.Named("hooks"),
	}
}

// Subscribe appends the handler to the event's invocation list. Multiple
// handlers per event are supported.
func (b *HookBus) Subscribe(event schemas.Event, fn HookFunc) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.subs[event] = append(b.subs[event], fn)
	b.mu.Unlock()
	b.log.Debug("Hook registered", zap.String("event", string(event)))
}

// Publish invokes every handler registered for the event, in order.
func (b *HookBus) Publish(event schemas.Event, payload map[string]any) {
	b.mu.RLock()
	handlers := b.subs[event]
	// Copy so a handler subscribing mid-flight cannot mutate the slice
	// under us.
	subsCopy := make([]HookFunc, len(handlers))
	copy(subsCopy, handlers)
	b.mu.RUnlock()

	for _, fn := range subsCopy {
		b.invoke(event, payload, fn)
	}
}

func (b *HookBus) invoke(event schemas.Event, payload map[string]any, fn HookFunc) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Hook panicked",
				zap.String("event", string(event)),
				zap.Any("panic", r))
		}
	}()
	fn(event, payload)
}
