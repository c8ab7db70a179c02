package outbox

import (
	"sync"

	"github.com/holdpay/holdpay/internal/outbox/domain"
)

// Handler consumes a published event. Handlers run synchronously on the
// publishing goroutine, after the event's transaction has committed.
type Handler func(domain.Event)

// Bus fans committed events out to in-process subscribers. Delivery carries
// no guarantee beyond "published once per commit"; durable consumers should
// read the outbox table instead.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	all      []Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

func (b *Bus) Publish(evt domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, handler := range b.handlers[evt.Type] {
		handler(evt)
	}
	for _, handler := range b.all {
		handler(evt)
	}
}
