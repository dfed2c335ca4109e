package callback

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Opener hands a URL to the environment (an OS URL handler, a browser, ...).
type Opener interface {
	CanOpen(ctx context.Context, url string) (bool, error)
	Open(ctx context.Context, url string) error
}

// Channel delivers outbound callback URLs. It prefers the opener and falls
// back to the bus whenever the opener declines or fails.
type Channel struct {
	opener Opener
	bus    *Bus
	logger zerolog.Logger
}

// NewChannel wires an opener and fallback bus. opener may be nil, in which
// case every URL goes to the bus.
func NewChannel(opener Opener, bus *Bus, logger zerolog.Logger) *Channel {
	return &Channel{opener: opener, bus: bus, logger: logger}
}

// Deliver never reports failure to the caller.
func (c *Channel) Deliver(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := c.tryOpen(ctx, url); err != nil {
		c.logger.Debug().Err(err).Str("url", url).Msg("opener unavailable, publishing on bus")
		c.publish(url)
		return
	}
	c.logger.Debug().Str("url", url).Msg("callback opened")
}

var errDeclined = errors.New("opener declined url")

func (c *Channel) tryOpen(ctx context.Context, url string) (err error) {
	if c.opener == nil {
		return errDeclined
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("opener panicked: %v", r)
		}
	}()
	ok, err := c.opener.CanOpen(ctx, url)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	if !ok {
		return errDeclined
	}
	if err := c.opener.Open(ctx, url); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	return nil
}

func (c *Channel) publish(url string) {
	if c.bus == nil {
		c.logger.Warn().Str("url", url).Msg("callback dropped, no bus configured")
		return
	}
	c.bus.Publish(url)
}
