package feed

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "feed")

// Handler consumes one published event. Handlers for the same event run
// concurrently; Publish returns only after all of them have returned.
type Handler func(ctx context.Context, ev *Event) error

// Bus is the process-wide event bus. Subscribers are registered with
// explicit event types; there is no reflection-based dispatch. Subscribe is
// rare and cheap, Publish snapshots the subscriber list so publishers are
// never blocked by subscription churn.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Handler)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish invokes every handler subscribed to the event's type and waits for
// the whole set to complete. A failing or panicking handler is logged and
// does not affect the other handlers or the publisher.
func (b *Bus) Publish(ctx context.Context, ev *Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[ev.Type]))
	copy(handlers, b.subs[ev.Type])
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(handlers))
	for _, h := range handlers {
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(logrus.Fields{
						"event": ev.Type,
						"panic": r,
					}).Errorf("Subscriber panicked: %s", debug.Stack())
				}
			}()
			if err := h(ctx, ev); err != nil {
				log.WithError(err).WithField("event", ev.Type).Error("Subscriber failed")
			}
		}(h)
	}
	wg.Wait()
}
