package callback

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeOpener struct {
	can      bool
	probeErr error
	openErr  error
	panics   bool
	opened   []string
}

func (f *fakeOpener) CanOpen(context.Context, string) (bool, error) {
	if f.panics {
		panic("probe exploded")
	}
	return f.can, f.probeErr
}

func (f *fakeOpener) Open(_ context.Context, url string) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = append(f.opened, url)
	return nil
}

func TestChannelDeliver(t *testing.T) {
	const target = "app://cb?id=1&result=x"
	tests := []struct {
		name       string
		opener     *fakeOpener
		wantOpened bool
	}{
		{"opener accepts", &fakeOpener{can: true}, true},
		{"opener declines", &fakeOpener{can: false}, false},
		{"probe fails", &fakeOpener{can: true, probeErr: errors.New("no handler")}, false},
		{"open fails", &fakeOpener{can: true, openErr: errors.New("exit 3")}, false},
		{"opener panics", &fakeOpener{panics: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewBus(zerolog.Nop())
			var published []string
			bus.Subscribe(func(url string) { published = append(published, url) })

			NewChannel(tt.opener, bus, zerolog.Nop()).Deliver(context.Background(), target)

			if tt.wantOpened {
				assert.Equal(t, []string{target}, tt.opener.opened)
				assert.Empty(t, published)
			} else {
				assert.Empty(t, tt.opener.opened)
				assert.Equal(t, []string{target}, published)
			}
		})
	}
}

func TestChannelNilOpenerFallsBack(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var published []string
	bus.Subscribe(func(url string) { published = append(published, url) })

	ch := NewChannel(nil, bus, zerolog.Nop())
	ch.Deliver(context.Background(), "app://cb")
	ch.Deliver(context.Background(), "")
	assert.Equal(t, []string{"app://cb"}, published)
}

func TestChannelWithoutBus(t *testing.T) {
	ch := NewChannel(&fakeOpener{}, nil, zerolog.Nop())
	assert.NotPanics(t, func() { ch.Deliver(context.Background(), "app://cb") })
}
