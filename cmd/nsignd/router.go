package main

import (
	"context"
	"errors"
	"time"

	"github.com/rexliu/nsign/pkg/callback"
	"github.com/rexliu/nsign/pkg/core"
)

const loopbackWait = 30 * time.Second

// routeInbound handles URLs published on the bus. Links addressed to the
// signer itself are loaded as new requests; debug routes are only logged.
func (d *daemon) routeInbound(url string) {
	if route, ok := callback.ParseDebugRoute(url); ok {
		d.log.Info().
			Str("kind", string(route.Kind)).
			Str("id", route.ID).
			Str("code", route.Code).
			Str("reason", route.Reason).
			Msg("debug callback received")
		return
	}
	if !core.IsSignerURL(url) {
		return
	}
	// Publish runs inside the dispatcher's delivery, so loading has to wait
	// until that resolution finishes.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), loopbackWait)
		defer cancel()
		_, err := d.dispatcher.LoadWhenIdle(ctx, url)
		switch {
		case err == nil:
			d.log.Info().Msg("loopback request loaded")
		case errors.Is(err, context.DeadlineExceeded):
			d.log.Warn().Msg("loopback request dropped, dispatcher stayed busy")
		default:
			d.log.Warn().Err(err).Msg("loopback request rejected")
		}
	}()
}
