package nostr

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

var (
	ErrInvalidEvent     = errors.New("invalid event")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Event is a signed (or to-be-signed) nostr event.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

type template struct {
	CreatedAt json.RawMessage `json:"created_at"`
	Kind      json.RawMessage `json:"kind"`
	Tags      [][]string      `json:"tags"`
	Content   string          `json:"content"`
}

// ParseTemplate reads the caller supplied part of an event. The input must be
// a JSON object with an integer kind; created_at, tags and content are
// optional. Any id, pubkey or sig in the input is ignored.
func ParseTemplate(raw []byte) (*Event, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidEvent)
	}
	var tpl template
	if err := json.Unmarshal(trimmed, &tpl); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if len(tpl.Kind) == 0 {
		return nil, fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	kind, err := strconv.Atoi(string(tpl.Kind))
	if err != nil || kind < 0 {
		return nil, fmt.Errorf("%w: kind must be a non-negative integer", ErrInvalidEvent)
	}
	ev := &Event{Kind: kind, Tags: tpl.Tags, Content: tpl.Content}
	if len(tpl.CreatedAt) > 0 && string(tpl.CreatedAt) != "null" {
		createdAt, err := strconv.ParseInt(string(tpl.CreatedAt), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: created_at must be an integer", ErrInvalidEvent)
		}
		ev.CreatedAt = createdAt
	}
	if ev.Tags == nil {
		ev.Tags = [][]string{}
	}
	return ev, nil
}

// Serialize produces the canonical commitment
// [0,pubkey,created_at,kind,tags,content].
func (e *Event) Serialize() []byte {
	var b bytes.Buffer
	b.WriteString(`[0,`)
	writeString(&b, e.PubKey)
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(e.CreatedAt, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.Kind))
	b.WriteString(`,[`)
	for i, tag := range e.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeString(&b, v)
		}
		b.WriteByte(']')
	}
	b.WriteString(`],`)
	writeString(&b, e.Content)
	b.WriteByte(']')
	return b.Bytes()
}

// writeString escapes s the way the event id commitment requires: only
// quote, backslash and control characters are escaped, everything else is
// written as raw UTF-8.
func writeString(b *bytes.Buffer, s string) {
	const hexDigits = "0123456789abcdef"
	b.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[c>>4])
				b.WriteByte(hexDigits[c&0xf])
			} else {
				b.WriteByte(c)
			}
		}
		i++
	}
	b.WriteByte('"')
}

// Hash returns the hex event id.
func (e *Event) Hash() string {
	sum := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(sum[:])
}

// Sign stamps pubkey, id and sig using secret.
func (e *Event) Sign(secret []byte) error {
	pub, err := PublicKeyHex(secret)
	if err != nil {
		return err
	}
	if e.Tags == nil {
		e.Tags = [][]string{}
	}
	e.PubKey = pub
	e.ID = e.Hash()
	sig, err := SignID(secret, e.ID)
	if err != nil {
		return err
	}
	e.Sig = sig
	return nil
}

// Verify checks the id commitment and the signature.
func (e *Event) Verify() error {
	if e.Hash() != e.ID {
		return fmt.Errorf("%w: id does not match content", ErrInvalidEvent)
	}
	return VerifySignature(e.PubKey, e.ID, e.Sig)
}

// JSON renders the event without HTML escaping.
func (e *Event) JSON() (string, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(b.Bytes(), "\n")), nil
}

// SignID produces a BIP-340 signature over a hex-encoded 32-byte id.
func SignID(secret []byte, idHex string) (string, error) {
	priv, err := privateKey(secret)
	if err != nil {
		return "", err
	}
	id, err := hex.DecodeString(idHex)
	if err != nil || len(id) != sha256.Size {
		return "", fmt.Errorf("%w: id must be 32 hex bytes", ErrInvalidEvent)
	}
	sig, err := schnorr.Sign(priv, id)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// VerifySignature checks a BIP-340 signature over a 32-byte hex message.
func VerifySignature(pubkeyHex, msgHex, sigHex string) error {
	pub, err := ParsePublicKey(pubkeyHex)
	if err != nil {
		return err
	}
	msg, err := hex.DecodeString(msgHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	rawSig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sig, err := schnorr.ParseSignature(rawSig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !sig.Verify(msg, pub) {
		return ErrInvalidSignature
	}
	return nil
}
