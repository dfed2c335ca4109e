package signer

import (
	"context"

	"github.com/rexliu/nsign/pkg/core"
	"github.com/rexliu/nsign/pkg/nostr"
)

type cryptFunc func(ctx context.Context, secret []byte, peer, text string) (string, error)

func (d *Dispatcher) getPublicKey(ctx context.Context, id *Identity) ([]core.Param, error) {
	npub, err := d.crypto.EncodePublicKey(ctx, id.PublicKey)
	if err != nil {
		return nil, err
	}
	return []core.Param{core.P("pubkey", id.PublicKey), core.P("npub", npub)}, nil
}

func (d *Dispatcher) signEvent(ctx context.Context, req *core.Request, id *Identity) ([]core.Param, error) {
	if req.Payload.EventJSON == "" {
		return nil, core.Errorf(core.CodeInvalidRequest, "missing event")
	}
	key, err := core.ResponseKey(req, core.ReturnEvent.ResponseKey(), core.AllowedReturnTypes(req.Method)...)
	if err != nil {
		return nil, err
	}
	ev, err := nostr.ParseTemplate([]byte(core.Unescape(req.Payload.EventJSON)))
	if err != nil {
		return nil, core.Errorf(core.CodeInvalidRequest, "%v", err)
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = d.now().Unix()
	}
	ev.PubKey = id.PublicKey

	ev.ID, err = d.crypto.EventID(ctx, ev)
	if err != nil {
		return nil, err
	}
	ev.Sig, err = d.crypto.SignID(ctx, id.Secret, ev.ID)
	if err != nil {
		return nil, err
	}

	if key != core.ReturnEvent.ResponseKey() {
		return []core.Param{core.P(key, ev.Sig)}, nil
	}
	signed, err := ev.JSON()
	if err != nil {
		return nil, err
	}
	return []core.Param{core.P(key, signed)}, nil
}

func (d *Dispatcher) encrypt(ctx context.Context, req *core.Request, id *Identity, fn cryptFunc) ([]core.Param, error) {
	if req.Payload.Plaintext == "" {
		return nil, core.Errorf(core.CodeInvalidRequest, "missing plaintext")
	}
	if req.Payload.Pubkey == "" {
		return nil, core.Errorf(core.CodeInvalidRequest, "missing pubkey")
	}
	key, err := core.ResponseKey(req, core.ReturnCiphertext.ResponseKey(), core.AllowedReturnTypes(req.Method)...)
	if err != nil {
		return nil, err
	}
	ciphertext, err := fn(ctx, id.Secret, req.Payload.Pubkey, core.Unescape(req.Payload.Plaintext))
	if err != nil {
		return nil, err
	}
	return []core.Param{core.P(key, ciphertext)}, nil
}

func (d *Dispatcher) decrypt(ctx context.Context, req *core.Request, id *Identity, fn cryptFunc) ([]core.Param, error) {
	if req.Payload.EncryptedText == "" {
		return nil, core.Errorf(core.CodeInvalidRequest, "missing encryptedText")
	}
	if req.Payload.Pubkey == "" {
		return nil, core.Errorf(core.CodeInvalidRequest, "missing pubkey")
	}
	key, err := core.ResponseKey(req, core.ReturnPlaintext.ResponseKey(), core.AllowedReturnTypes(req.Method)...)
	if err != nil {
		return nil, err
	}
	plaintext, err := fn(ctx, id.Secret, req.Payload.Pubkey, core.Unescape(req.Payload.EncryptedText))
	if err != nil {
		return nil, err
	}
	return []core.Param{core.P(key, plaintext)}, nil
}
