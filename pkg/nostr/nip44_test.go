package nostr

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcPaddedLen(t *testing.T) {
	cases := map[int]int{
		1: 32, 16: 32, 32: 32, 33: 64, 37: 64, 64: 64, 65: 96,
		100: 128, 200: 224, 256: 256, 257: 320, 320: 320,
		383: 384, 515: 640, 1025: 1280, 65535: 65536,
	}
	for in, want := range cases {
		assert.Equal(t, want, CalcPaddedLen(in), "len %d", in)
	}
}

func TestConversationKeySymmetric(t *testing.T) {
	aliceSec, alicePub := keyPair(t)
	bobSec, bobPub := keyPair(t)

	k1, err := ConversationKey(aliceSec, bobPub)
	require.NoError(t, err)
	k2, err := ConversationKey(bobSec, alicePub)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)
}

func TestNIP44RoundTrip(t *testing.T) {
	aliceSec, _ := keyPair(t)
	_, bobPub := keyPair(t)
	key, err := ConversationKey(aliceSec, bobPub)
	require.NoError(t, err)

	for _, msg := range []string{"a", "hello nip44", strings.Repeat("z", 300), strings.Repeat("q", 65535)} {
		payload, err := NIP44Encrypt(key, msg, rand.Reader)
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(payload)
		require.NoError(t, err)
		assert.Equal(t, byte(2), raw[0])
		assert.Equal(t, 1+32+2+CalcPaddedLen(len(msg))+32, len(raw))

		got, err := NIP44Decrypt(key, payload)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	}
}

func TestNIP44Deterministic(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	nonce := bytes.Repeat([]byte{1}, 32)
	a, err := NIP44EncryptWithNonce(key, "same", nonce)
	require.NoError(t, err)
	b, err := NIP44EncryptWithNonce(key, "same", nonce)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNIP44KnownVector(t *testing.T) {
	sec1 := scalar(1)
	sec2 := scalar(2)
	pub2, err := PublicKeyHex(sec2)
	require.NoError(t, err)

	key, err := ConversationKey(sec1, pub2)
	require.NoError(t, err)
	assert.Equal(t, "c41c775356fd92eadc63ff5a0dc1da211b268cbea22316767095b2871ea1412d", hex.EncodeToString(key))

	const want = "AgAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABee0G5VSK0/9YypIObAtDKfYEAjD35uVkHyB0F4DwrcNaCXlCWZKaArsGrY6M9wnuTMxWfp1RTN9Xga8no+kF5Vsb"
	payload, err := NIP44EncryptWithNonce(key, "a", scalar(1))
	require.NoError(t, err)
	assert.Equal(t, want, payload)

	got, err := NIP44Decrypt(key, want)
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

// scalar returns v as a 32-byte big-endian value.
func scalar(v byte) []byte {
	b := make([]byte, 32)
	b[31] = v
	return b
}

func TestNIP44Rejects(t *testing.T) {
	key := bytes.Repeat([]byte{9}, 32)

	_, err := NIP44Encrypt(key, "", rand.Reader)
	assert.ErrorIs(t, err, ErrInvalidNIP44Payload)
	_, err = NIP44Encrypt(key, strings.Repeat("x", 65536), rand.Reader)
	assert.ErrorIs(t, err, ErrInvalidNIP44Payload)

	payload, err := NIP44Encrypt(key, "authentic", rand.Reader)
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(payload)
	raw[40] ^= 0x01
	_, err = NIP44Decrypt(key, base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrInvalidNIP44Payload)

	raw, _ = base64.StdEncoding.DecodeString(payload)
	raw[0] = 1
	_, err = NIP44Decrypt(key, base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrInvalidNIP44Payload)

	other := bytes.Repeat([]byte{8}, 32)
	_, err = NIP44Decrypt(other, payload)
	assert.ErrorIs(t, err, ErrInvalidNIP44Payload)

	for _, bad := range []string{"", "#future", "short", strings.Repeat("A", 131)} {
		_, err := NIP44Decrypt(key, bad)
		assert.ErrorIs(t, err, ErrInvalidNIP44Payload, bad)
	}
}
