// Package event is a small synchronous in-process bus. The report cycle
// publishes on it; observability and the status page subscribe.
package event

import (
	"fmt"
	"sync"
)

type Handler func(event any)

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	// OnPanic, if set, is told about handlers that panicked.
	OnPanic func(eventName string, err error)
}

func New() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
	}
}

func (b *Bus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish calls every handler for eventName in subscription order. A
// panicking handler is skipped so the publisher keeps running.
func (b *Bus) Publish(eventName string, event any) {
	b.mu.RLock()
	handlers := b.handlers[eventName]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.call(eventName, h, event)
	}
}

func (b *Bus) call(eventName string, h Handler, event any) {
	defer func() {
		if r := recover(); r != nil && b.OnPanic != nil {
			b.OnPanic(eventName, fmt.Errorf("event handler panic: %v", r))
		}
	}()

	h(event)
}
