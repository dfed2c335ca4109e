package core

import (
	"bytes"
	"encoding/json"
	"net/url"
)

// PreviewSection is one labelled block shown to the user before approval.
type PreviewSection struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Describe returns a one-line summary of what req asks for.
func Describe(req *Request) string {
	if req == nil {
		return "Unknown request"
	}
	switch req.Method {
	case MethodGetPublicKey:
		return "Request: get_public_key (return pubkey for current account)"
	case MethodSignEvent:
		return "Request: sign_event (sign the provided event JSON)"
	case MethodNIP04Encrypt:
		return "Request: nip04_encrypt (encrypt a message with shared secret)"
	case MethodNIP04Decrypt:
		return "Request: nip04_decrypt (decrypt a message with shared secret)"
	case MethodNIP44Encrypt:
		return "Request: nip44_encrypt (encrypt a message using NIP-44)"
	case MethodNIP44Decrypt:
		return "Request: nip44_decrypt (decrypt a message using NIP-44)"
	case MethodDecryptZapEvent:
		return "Request: decrypt_zap_event (decrypt a zap event)"
	default:
		return "Unknown request"
	}
}

// Preview lists the payload of req in display form.
func Preview(req *Request) []PreviewSection {
	if req == nil {
		return nil
	}
	var sections []PreviewSection
	p := req.Payload
	if p.EventJSON != "" {
		sections = append(sections, PreviewSection{Label: "Event", Value: prettyJSON(Unescape(p.EventJSON))})
	}
	if p.Plaintext != "" {
		sections = append(sections, PreviewSection{Label: "Plaintext", Value: Unescape(p.Plaintext)})
	}
	if p.EncryptedText != "" {
		sections = append(sections, PreviewSection{Label: "Ciphertext", Value: Unescape(p.EncryptedText)})
	}
	if p.Pubkey != "" {
		sections = append(sections, PreviewSection{Label: "Counterparty Pubkey", Value: p.Pubkey})
	}
	return sections
}

// Unescape removes one more layer of percent-encoding when present. Callers
// are inconsistent about double encoding payloads, so undecodable input is
// returned unchanged.
func Unescape(value string) string {
	decoded, err := url.PathUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}

func prettyJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
		return s
	}
	return buf.String()
}
