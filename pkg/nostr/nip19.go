package nostr

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

const (
	PrefixPublicKey = "npub"
	PrefixSecretKey = "nsec"
)

var ErrInvalidBech32 = errors.New("invalid bech32 entity")

// EncodePublicKey renders a hex public key as npub.
func EncodePublicKey(pubkeyHex string) (string, error) {
	raw, err := hex.DecodeString(pubkeyHex)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPublicKey, pubkeyHex)
	}
	return encode(PrefixPublicKey, raw)
}

// EncodeSecretKey renders a secret as nsec.
func EncodeSecretKey(secret []byte) (string, error) {
	if len(secret) != 32 {
		return "", ErrInvalidSecretKey
	}
	return encode(PrefixSecretKey, secret)
}

func encode(prefix string, data []byte) (string, error) {
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(prefix, conv)
}

// Decode splits a bech32 entity into its prefix and 32-byte payload.
func Decode(entity string) (string, []byte, error) {
	prefix, data, err := bech32.Decode(entity)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidBech32, err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidBech32, err)
	}
	if len(raw) != 32 {
		return "", nil, fmt.Errorf("%w: payload is %d bytes", ErrInvalidBech32, len(raw))
	}
	return prefix, raw, nil
}

// SecretFromNsec decodes and validates an nsec entity.
func SecretFromNsec(nsec string) ([]byte, error) {
	prefix, raw, err := Decode(nsec)
	if err != nil {
		return nil, err
	}
	if prefix != PrefixSecretKey {
		return nil, fmt.Errorf("%w: prefix %q is not %s", ErrInvalidBech32, prefix, PrefixSecretKey)
	}
	if _, err := privateKey(raw); err != nil {
		return nil, err
	}
	return raw, nil
}
