package nostr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

const (
	nip44Version      = 2
	nip44Salt         = "nip44-v2"
	nip44MinPlaintext = 1
	nip44MaxPlaintext = 65535
	nip44NonceSize    = 32
	nip44MACSize      = 32
)

var ErrInvalidNIP44Payload = errors.New("invalid nip44 payload")

// ConversationKey derives the long-lived key shared by secret and peer.
func ConversationKey(secret []byte, peerHex string) ([]byte, error) {
	shared, err := sharedX(secret, peerHex)
	if err != nil {
		return nil, err
	}
	return hkdf.Extract(sha256.New, shared, []byte(nip44Salt)), nil
}

func messageKeys(conversationKey, nonce []byte) (chachaKey, chachaNonce, hmacKey []byte, err error) {
	if len(conversationKey) != 32 {
		return nil, nil, nil, fmt.Errorf("%w: conversation key length", ErrInvalidNIP44Payload)
	}
	keys := make([]byte, 76)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, conversationKey, nonce), keys); err != nil {
		return nil, nil, nil, err
	}
	return keys[:32], keys[32:44], keys[44:], nil
}

// CalcPaddedLen returns the padded size for an unpadded plaintext length.
func CalcPaddedLen(n int) int {
	if n <= 32 {
		return 32
	}
	nextPower := 1 << bits.Len(uint(n-1))
	chunk := 32
	if nextPower > 256 {
		chunk = nextPower / 8
	}
	return chunk * ((n-1)/chunk + 1)
}

func nip44Pad(plaintext string) ([]byte, error) {
	n := len(plaintext)
	if n < nip44MinPlaintext || n > nip44MaxPlaintext {
		return nil, fmt.Errorf("%w: plaintext length %d out of range", ErrInvalidNIP44Payload, n)
	}
	padded := make([]byte, 2+CalcPaddedLen(n))
	binary.BigEndian.PutUint16(padded, uint16(n))
	copy(padded[2:], plaintext)
	return padded, nil
}

func nip44Unpad(padded []byte) (string, error) {
	if len(padded) < 2 {
		return "", fmt.Errorf("%w: short plaintext", ErrInvalidNIP44Payload)
	}
	n := int(binary.BigEndian.Uint16(padded))
	if n < nip44MinPlaintext || 2+n > len(padded) || len(padded) != 2+CalcPaddedLen(n) {
		return "", fmt.Errorf("%w: bad padding", ErrInvalidNIP44Payload)
	}
	return string(padded[2 : 2+n]), nil
}

func nip44MAC(key, nonce, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(nonce)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

// NIP44EncryptWithNonce is the deterministic core of NIP44Encrypt.
func NIP44EncryptWithNonce(conversationKey []byte, plaintext string, nonce []byte) (string, error) {
	if len(nonce) != nip44NonceSize {
		return "", fmt.Errorf("%w: nonce length", ErrInvalidNIP44Payload)
	}
	chachaKey, chachaNonce, hmacKey, err := messageKeys(conversationKey, nonce)
	if err != nil {
		return "", err
	}
	padded, err := nip44Pad(plaintext)
	if err != nil {
		return "", err
	}
	stream, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		return "", err
	}
	ciphertext := make([]byte, len(padded))
	stream.XORKeyStream(ciphertext, padded)

	out := make([]byte, 0, 1+len(nonce)+len(ciphertext)+nip44MACSize)
	out = append(out, nip44Version)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	out = append(out, nip44MAC(hmacKey, nonce, ciphertext)...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// NIP44Encrypt encrypts plaintext under the conversation key with a random nonce.
func NIP44Encrypt(conversationKey []byte, plaintext string, random io.Reader) (string, error) {
	nonce := make([]byte, nip44NonceSize)
	if _, err := io.ReadFull(random, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	return NIP44EncryptWithNonce(conversationKey, plaintext, nonce)
}

// NIP44Decrypt authenticates and decrypts a version 2 payload.
func NIP44Decrypt(conversationKey []byte, payload string) (string, error) {
	if payload == "" || payload[0] == '#' {
		return "", fmt.Errorf("%w: unknown version", ErrInvalidNIP44Payload)
	}
	if len(payload) < 132 || len(payload) > 87472 {
		return "", fmt.Errorf("%w: payload size %d", ErrInvalidNIP44Payload, len(payload))
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNIP44Payload, err)
	}
	if len(raw) < 99 || len(raw) > 65603 {
		return "", fmt.Errorf("%w: data size %d", ErrInvalidNIP44Payload, len(raw))
	}
	if raw[0] != nip44Version {
		return "", fmt.Errorf("%w: unknown version %d", ErrInvalidNIP44Payload, raw[0])
	}
	nonce := raw[1 : 1+nip44NonceSize]
	ciphertext := raw[1+nip44NonceSize : len(raw)-nip44MACSize]
	mac := raw[len(raw)-nip44MACSize:]

	chachaKey, chachaNonce, hmacKey, err := messageKeys(conversationKey, nonce)
	if err != nil {
		return "", err
	}
	if !hmac.Equal(mac, nip44MAC(hmacKey, nonce, ciphertext)) {
		return "", fmt.Errorf("%w: invalid MAC", ErrInvalidNIP44Payload)
	}
	stream, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		return "", err
	}
	padded := make([]byte, len(ciphertext))
	stream.XORKeyStream(padded, ciphertext)
	return nip44Unpad(padded)
}
