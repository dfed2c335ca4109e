package signer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rexliu/nsign/pkg/core"
)

const (
	reasonUserCancelled = "User cancelled"
	reasonNoSigner      = "No signer configured"
	reasonUserMismatch  = "current_user mismatch"
)

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source used to stamp unsigned events.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher holds at most one pending request and resolves it on approval or
// rejection. Every resolved request produces exactly one delivery when the
// caller supplied a destination for it.
type Dispatcher struct {
	identity IdentityProvider
	crypto   Crypto
	deliver  Deliverer
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	state   State
	pending *core.Request
	// idle is closed whenever state is not busy.
	idle chan struct{}
}

// NewDispatcher wires the collaborators.
func NewDispatcher(identity IdentityProvider, crypto Crypto, deliverer Deliverer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		identity: identity,
		crypto:   crypto,
		deliver:  deliverer,
		now:      time.Now,
		logger:   zerolog.Nop(),
		idle:     make(chan struct{}),
	}
	close(d.idle)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current lifecycle position.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pending returns the loaded request, or nil.
func (d *Dispatcher) Pending() *core.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateLoaded {
		return nil
	}
	return d.pending
}

// Idle returns a channel that is closed once no decision is in flight. The
// channel is replaced every time a new decision starts.
func (d *Dispatcher) Idle() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idle
}

// Load parses raw and makes it the pending request. A link that fails to
// parse is answered immediately on its error destination and the returned
// error is a *core.Error. Loading over an already pending request replaces it
// without answering the older caller.
func (d *Dispatcher) Load(ctx context.Context, raw string) (*core.Request, error) {
	if !core.IsSignerURL(raw) {
		return nil, core.ErrNotSignerURL
	}

	d.mu.Lock()
	if d.state.busy() {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	req, err := core.Parse(raw)
	if err != nil {
		d.mu.Unlock()
		protoErr := core.Classify(err)
		d.logger.Warn().Str("code", string(protoErr.Code)).Str("reason", protoErr.Reason).Msg("rejecting malformed request")
		d.deliverFailure(ctx, req, protoErr)
		return req, protoErr
	}
	superseded := d.pending
	d.pending = req
	d.state = StateLoaded
	d.mu.Unlock()

	if superseded != nil {
		d.logger.Info().Str("id", superseded.ID).Str("by", req.ID).Msg("pending request superseded")
	}
	d.logger.Info().Str("method", string(req.Method)).Str("id", req.ID).Msg("request loaded")
	return req, nil
}

// LoadWhenIdle is Load for links that may arrive while a decision is still
// being resolved, such as callbacks delivered back into this process. It waits
// for the dispatcher to become idle instead of failing with ErrBusy.
func (d *Dispatcher) LoadWhenIdle(ctx context.Context, raw string) (*core.Request, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.Idle():
		}
		req, err := d.Load(ctx, raw)
		if !errors.Is(err, ErrBusy) {
			return req, err
		}
	}
}

// Reject answers the pending request with user_cancelled. Neither the
// identity nor the crypto collaborator is consulted.
func (d *Dispatcher) Reject(ctx context.Context) (Outcome, error) {
	req, err := d.take(StateResolving)
	if err != nil {
		return Outcome{}, err
	}
	defer d.reset()
	return d.resolve(ctx, req, nil, &core.Error{Code: core.CodeUserCancelled, Reason: reasonUserCancelled}), nil
}

// Approve authorizes the pending request against the current identity,
// executes it and delivers the result.
func (d *Dispatcher) Approve(ctx context.Context) (Outcome, error) {
	req, err := d.take(StateAuthorizing)
	if err != nil {
		return Outcome{}, err
	}
	defer d.reset()

	params, err := d.authorizeAndExecute(ctx, req)
	d.setState(StateResolving)
	return d.resolve(ctx, req, params, err), nil
}

func (d *Dispatcher) take(next State) (*core.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.state.busy():
		return nil, ErrBusy
	case d.state != StateLoaded || d.pending == nil:
		return nil, ErrNoPendingRequest
	}
	d.state = next
	d.idle = make(chan struct{})
	return d.pending, nil
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *Dispatcher) reset() {
	d.mu.Lock()
	d.state = StateIdle
	d.pending = nil
	close(d.idle)
	d.mu.Unlock()
}

func (d *Dispatcher) authorizeAndExecute(ctx context.Context, req *core.Request) (params []core.Param, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("method", string(req.Method)).Msg("operation panicked")
			params, err = nil, core.Errorf(core.CodeInternalError, "%v", r)
		}
	}()

	id, err := d.identity.CurrentIdentity(ctx)
	switch {
	case errors.Is(err, ErrNoIdentity), err == nil && id == nil:
		return nil, &core.Error{Code: core.CodeNotLoggedIn, Reason: reasonNoSigner}
	case err != nil:
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if req.CurrentUser != "" && !strings.EqualFold(req.CurrentUser, id.PublicKey) {
		return nil, &core.Error{Code: core.CodePermissionDenied, Reason: reasonUserMismatch}
	}
	d.setState(StateExecuting)
	return d.execute(ctx, req, id)
}

func (d *Dispatcher) execute(ctx context.Context, req *core.Request, id *Identity) ([]core.Param, error) {
	switch req.Method {
	case core.MethodGetPublicKey:
		return d.getPublicKey(ctx, id)
	case core.MethodSignEvent:
		return d.signEvent(ctx, req, id)
	case core.MethodNIP04Encrypt:
		return d.encrypt(ctx, req, id, d.crypto.NIP04Encrypt)
	case core.MethodNIP44Encrypt:
		return d.encrypt(ctx, req, id, d.crypto.NIP44Encrypt)
	case core.MethodNIP04Decrypt:
		return d.decrypt(ctx, req, id, d.crypto.NIP04Decrypt)
	case core.MethodNIP44Decrypt:
		return d.decrypt(ctx, req, id, d.crypto.NIP44Decrypt)
	default:
		return nil, core.Errorf(core.CodeUnsupportedMethod, "Method not supported: %s", req.Method)
	}
}

// resolve builds the callback for a finished request and delivers it.
func (d *Dispatcher) resolve(ctx context.Context, req *core.Request, params []core.Param, err error) Outcome {
	out := Outcome{Request: req}
	if err == nil {
		successURL, buildErr := core.BuildSuccessURL(req, params...)
		if buildErr == nil {
			out.Params = params
			out.CallbackURL = successURL
			out.Message = successMessage(req.Method)
			d.deliver.Deliver(ctx, successURL)
			out.Delivered = true
			d.logger.Info().Str("method", string(req.Method)).Str("id", req.ID).Msg(out.Message)
			return out
		}
		err = buildErr
	}

	protoErr := core.Classify(err)
	out.Err = protoErr
	out.Message = protoErr.Friendly()
	out.CallbackURL, out.Delivered = d.deliverFailure(ctx, req, protoErr)
	return out
}

func (d *Dispatcher) deliverFailure(ctx context.Context, req *core.Request, protoErr *core.Error) (string, bool) {
	errURL, ok := core.BuildErrorURL(req, protoErr.Code, protoErr.Reason)
	event := d.logger.Info()
	if protoErr.Code == core.CodeInternalError {
		event = d.logger.Error()
	}
	event = event.Str("code", string(protoErr.Code)).Str("reason", protoErr.Reason)
	if req != nil {
		event = event.Str("id", req.ID)
	}
	if !ok {
		event.Msg("request failed, caller has no error destination")
		return "", false
	}
	d.deliver.Deliver(ctx, errURL)
	event.Msg("request failed, error delivered")
	return errURL, true
}
