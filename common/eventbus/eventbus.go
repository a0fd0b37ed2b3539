package eventbus

import "sync"

type EventID string

type Event interface {
	EventID() EventID
}

type EventHandler func(e Event)

type Bus interface {
	Subscribe(id EventID, handler EventHandler)
	Publish(e Event)
}

func NewBus() Bus {
	return &bus{handlers: make(map[EventID][]EventHandler)}
}

type bus struct {
	mutex    sync.RWMutex
	handlers map[EventID][]EventHandler
}

func (b *bus) Subscribe(id EventID, handler EventHandler) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.handlers[id] = append(b.handlers[id], handler)
}

func (b *bus) Publish(e Event) {
	b.mutex.RLock()
	handlers := b.handlers[e.EventID()]
	b.mutex.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}
