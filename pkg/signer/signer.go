// Package signer resolves parsed signer requests against the local identity
// and delivers exactly one callback per request.
package signer

import (
	"context"
	"errors"

	"github.com/rexliu/nsign/pkg/nostr"
)

var (
	// ErrNoIdentity is returned by identity providers when no key is configured.
	ErrNoIdentity = errors.New("no identity configured")
	// ErrBusy rejects a new request while another one is executing.
	ErrBusy = errors.New("a request is already executing")
	// ErrNoPendingRequest is returned by Approve and Reject when nothing is loaded.
	ErrNoPendingRequest = errors.New("no pending request")
)

// Identity is the locally held key pair.
type Identity struct {
	Secret    []byte
	PublicKey string
}

// IdentityProvider looks up the active identity.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (*Identity, error)
}

// Crypto performs the signing and encryption primitives.
type Crypto interface {
	EncodePublicKey(ctx context.Context, pubkeyHex string) (string, error)
	EventID(ctx context.Context, ev *nostr.Event) (string, error)
	SignID(ctx context.Context, secret []byte, id string) (string, error)
	NIP04Encrypt(ctx context.Context, secret []byte, peer, plaintext string) (string, error)
	NIP04Decrypt(ctx context.Context, secret []byte, peer, payload string) (string, error)
	NIP44Encrypt(ctx context.Context, secret []byte, peer, plaintext string) (string, error)
	NIP44Decrypt(ctx context.Context, secret []byte, peer, payload string) (string, error)
}

// Deliverer hands a finished callback URL to the caller.
type Deliverer interface {
	Deliver(ctx context.Context, url string)
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, url string)

func (f DelivererFunc) Deliver(ctx context.Context, url string) { f(ctx, url) }
