package callback

import (
	"sync"

	"github.com/rs/zerolog"
)

// Listener receives callback URLs that could not be handed to the environment.
type Listener func(url string)

type subscription struct {
	id uint64
	fn Listener
}

// Bus fans callback URLs out to in-process listeners. The zero value is not
// usable; construct with NewBus.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
	logger zerolog.Logger
}

// NewBus builds an empty bus that reports listener panics to logger.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers fn and returns a function removing exactly that
// registration. Calling the returned function more than once is a no-op.
func (b *Bus) Subscribe(fn Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers url to every listener registered at the time of the call,
// in registration order. Listeners run outside the lock so they may subscribe
// or unsubscribe; a panicking listener does not stop the others.
func (b *Bus) Publish(url string) {
	b.mu.Lock()
	snapshot := make([]subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, sub := range snapshot {
		b.invoke(sub, url)
	}
}

func (b *Bus) invoke(sub subscription, url string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Uint64("listener", sub.id).
				Interface("panic", r).
				Msg("callback listener panicked")
		}
	}()
	sub.fn(url)
}

// Len reports the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops every listener.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}
