// Package nostr implements the key handling, event signing and payload
// encryption schemes used by the signer.
package nostr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

var (
	ErrInvalidSecretKey = errors.New("invalid secret key")
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// GenerateSecretKey returns a fresh 32-byte secp256k1 secret.
func GenerateSecretKey() ([]byte, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return priv.Serialize(), nil
}

func privateKey(secret []byte) (*btcec.PrivateKey, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("%w: want 32 bytes, got %d", ErrInvalidSecretKey, len(secret))
	}
	var scalar btcec.ModNScalar
	if overflow := scalar.SetByteSlice(secret); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("%w: out of range", ErrInvalidSecretKey)
	}
	priv, _ := btcec.PrivKeyFromBytes(secret)
	return priv, nil
}

// PublicKeyHex derives the x-only public key for secret.
func PublicKeyHex(secret []byte) (string, error) {
	priv, err := privateKey(secret)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())), nil
}

// ParsePublicKey decodes a 64-character hex x-only public key.
func ParsePublicKey(pubkeyHex string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(pubkeyHex))
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPublicKey, pubkeyHex)
	}
	pub, err := schnorr.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// sharedX returns the x coordinate of secret * peer.
func sharedX(secret []byte, peerHex string) ([]byte, error) {
	priv, err := privateKey(secret)
	if err != nil {
		return nil, err
	}
	pub, err := ParsePublicKey(peerHex)
	if err != nil {
		return nil, err
	}
	return btcec.GenerateSharedSecret(priv, pub), nil
}
