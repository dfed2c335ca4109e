package callback

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var got []string
	bus.Subscribe(func(url string) { got = append(got, "a:"+url) })
	bus.Subscribe(func(url string) { got = append(got, "b:"+url) })

	bus.Publish("app://cb?x=1")
	assert.Equal(t, []string{"a:app://cb?x=1", "b:app://cb?x=1"}, got)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var first, second int
	unsubFirst := bus.Subscribe(func(string) { first++ })
	bus.Subscribe(func(string) { second++ })
	require.Equal(t, 2, bus.Len())

	unsubFirst()
	unsubFirst()
	assert.Equal(t, 1, bus.Len())

	bus.Publish("app://cb")
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestBusSameFunctionTwice(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	calls := 0
	fn := func(string) { calls++ }
	unsub := bus.Subscribe(fn)
	bus.Subscribe(fn)

	unsub()
	bus.Publish("app://cb")
	assert.Equal(t, 1, calls)
}

func TestBusPanickingListener(t *testing.T) {
	var logs bytes.Buffer
	bus := NewBus(zerolog.New(&logs))
	delivered := false
	bus.Subscribe(func(string) { panic("listener bug") })
	bus.Subscribe(func(string) { delivered = true })

	assert.NotPanics(t, func() { bus.Publish("app://cb") })
	assert.True(t, delivered)
	assert.Contains(t, logs.String(), "callback listener panicked")
}

func TestBusSnapshotDuringPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	lateCalls := 0
	var unsubSelf func()
	unsubSelf = bus.Subscribe(func(string) {
		unsubSelf()
		bus.Subscribe(func(string) { lateCalls++ })
	})

	bus.Publish("app://one")
	assert.Equal(t, 0, lateCalls)
	assert.Equal(t, 1, bus.Len())

	bus.Publish("app://two")
	assert.Equal(t, 1, lateCalls)
}

func TestBusClose(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	calls := 0
	unsub := bus.Subscribe(func(string) { calls++ })
	bus.Close()
	assert.Equal(t, 0, bus.Len())
	bus.Publish("app://cb")
	assert.Equal(t, 0, calls)
	assert.NotPanics(t, unsub)
}
