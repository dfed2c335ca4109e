package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rexliu/nsign/pkg/core"
	"github.com/rexliu/nsign/pkg/ipc"
	"github.com/rexliu/nsign/pkg/nostr"
	"github.com/rexliu/nsign/pkg/signer"
	"github.com/rexliu/nsign/pkg/storage/sqlite"
)

func (d *daemon) registerHandlers(srv *ipc.Server) {
	srv.Register("ping", d.handlePing)
	srv.Register("identity", d.handleIdentity)
	srv.Register("submit", d.handleSubmit)
	srv.Register("pending", d.handlePending)
	srv.Register("approve", d.handleApprove)
	srv.Register("reject", d.handleReject)
	srv.RegisterStream("subscribe_callbacks", d.hub.stream)
}

func (d *daemon) handlePing(ctx context.Context, _ json.RawMessage) (any, *ipc.Error) {
	return map[string]any{
		"now":      time.Now().UTC().Format(time.RFC3339),
		"state":    d.dispatcher.State().String(),
		"watchers": d.hub.count(),
	}, nil
}

type identityView struct {
	Label     string `json:"label,omitempty"`
	PublicKey string `json:"pubkey"`
	Npub      string `json:"npub"`
	CreatedAt int64  `json:"createdAt"`
}

func (d *daemon) handleIdentity(ctx context.Context, _ json.RawMessage) (any, *ipc.Error) {
	active, err := d.store.Active(ctx)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, ipc.Errorf(ipc.CodeNotFound, "no identity configured", nil)
	}
	if err != nil {
		return nil, ipc.Errorf(ipc.CodeInternal, err.Error(), nil)
	}
	npub, err := nostr.EncodePublicKey(active.PublicKey)
	if err != nil {
		return nil, ipc.Errorf(ipc.CodeInternal, err.Error(), nil)
	}
	return identityView{
		Label:     active.Label,
		PublicKey: active.PublicKey,
		Npub:      npub,
		CreatedAt: active.CreatedAt,
	}, nil
}

type submitParams struct {
	URL string `json:"url"`
}

type requestView struct {
	Request     *core.Request         `json:"request"`
	Description string                `json:"description"`
	Preview     []core.PreviewSection `json:"preview,omitempty"`
	State       string                `json:"state"`
}

func (d *daemon) view(req *core.Request) requestView {
	return requestView{
		Request:     req,
		Description: core.Describe(req),
		Preview:     core.Preview(req),
		State:       d.dispatcher.State().String(),
	}
}

func (d *daemon) handleSubmit(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var p submitParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, ipc.Errorf(ipc.CodeInvalidRequest, "invalid params", nil)
	}
	p.URL = strings.TrimSpace(p.URL)
	if p.URL == "" {
		return nil, ipc.Errorf(ipc.CodeInvalidRequest, "url required", nil)
	}
	req, err := d.dispatcher.Load(ctx, p.URL)
	if err != nil {
		return nil, dispatchError(err)
	}
	return d.view(req), nil
}

func (d *daemon) handlePending(ctx context.Context, _ json.RawMessage) (any, *ipc.Error) {
	req := d.dispatcher.Pending()
	if req == nil {
		return nil, ipc.Errorf(ipc.CodeNotFound, "no pending request", nil)
	}
	return d.view(req), nil
}

type outcomeView struct {
	OK          bool              `json:"ok"`
	Method      core.Method       `json:"method,omitempty"`
	ID          string            `json:"id,omitempty"`
	Result      map[string]string `json:"result,omitempty"`
	Code        core.ErrorCode    `json:"code,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	CallbackURL string            `json:"callbackUrl,omitempty"`
	Delivered   bool              `json:"delivered"`
	Message     string            `json:"message"`
}

func newOutcomeView(o signer.Outcome) outcomeView {
	v := outcomeView{
		OK:          o.OK(),
		Result:      o.Result(),
		CallbackURL: o.CallbackURL,
		Delivered:   o.Delivered,
		Message:     o.Message,
	}
	if o.Request != nil {
		v.Method = o.Request.Method
		v.ID = o.Request.ID
	}
	if o.Err != nil {
		v.Code = o.Err.Code
		v.Reason = o.Err.Reason
	}
	return v
}

func (d *daemon) handleApprove(ctx context.Context, _ json.RawMessage) (any, *ipc.Error) {
	outcome, err := d.dispatcher.Approve(ctx)
	if err != nil {
		return nil, dispatchError(err)
	}
	return newOutcomeView(outcome), nil
}

func (d *daemon) handleReject(ctx context.Context, _ json.RawMessage) (any, *ipc.Error) {
	outcome, err := d.dispatcher.Reject(ctx)
	if err != nil {
		return nil, dispatchError(err)
	}
	return newOutcomeView(outcome), nil
}

// dispatchError maps dispatcher failures onto IPC codes. Protocol errors keep
// their wire code in the details so clients can show the friendly text.
func dispatchError(err error) *ipc.Error {
	var protoErr *core.Error
	switch {
	case errors.As(err, &protoErr):
		return ipc.Errorf(ipc.CodeRejected, protoErr.Error(), map[string]any{
			"code":     string(protoErr.Code),
			"reason":   protoErr.Reason,
			"friendly": protoErr.Friendly(),
		})
	case errors.Is(err, core.ErrNotSignerURL):
		return ipc.Errorf(ipc.CodeInvalidRequest, err.Error(), nil)
	case errors.Is(err, signer.ErrBusy):
		return ipc.Errorf(ipc.CodeBusy, err.Error(), nil)
	case errors.Is(err, signer.ErrNoPendingRequest):
		return ipc.Errorf(ipc.CodeNotFound, err.Error(), nil)
	default:
		return ipc.Errorf(ipc.CodeInternal, err.Error(), nil)
	}
}
