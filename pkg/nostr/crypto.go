package nostr

import (
	"context"
	"crypto/rand"
	"io"
)

// Crypto bundles the operations the dispatcher needs. It holds no key
// material; every call receives the secret explicitly.
type Crypto struct {
	Rand io.Reader
}

// NewCrypto uses crypto/rand for nonces and IVs.
func NewCrypto() *Crypto {
	return &Crypto{Rand: rand.Reader}
}

func (c *Crypto) random() io.Reader {
	if c.Rand == nil {
		return rand.Reader
	}
	return c.Rand
}

func (c *Crypto) EncodePublicKey(_ context.Context, pubkeyHex string) (string, error) {
	return EncodePublicKey(pubkeyHex)
}

func (c *Crypto) EventID(_ context.Context, ev *Event) (string, error) {
	return ev.Hash(), nil
}

func (c *Crypto) SignID(ctx context.Context, secret []byte, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return SignID(secret, id)
}

func (c *Crypto) NIP04Encrypt(ctx context.Context, secret []byte, peer, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return NIP04Encrypt(secret, peer, plaintext, c.random())
}

func (c *Crypto) NIP04Decrypt(ctx context.Context, secret []byte, peer, payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return NIP04Decrypt(secret, peer, payload)
}

func (c *Crypto) NIP44Encrypt(ctx context.Context, secret []byte, peer, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := ConversationKey(secret, peer)
	if err != nil {
		return "", err
	}
	return NIP44Encrypt(key, plaintext, c.random())
}

func (c *Crypto) NIP44Decrypt(ctx context.Context, secret []byte, peer, payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := ConversationKey(secret, peer)
	if err != nil {
		return "", err
	}
	return NIP44Decrypt(key, payload)
}
