package callback

import (
	"github.com/rexliu/nsign/pkg/core"
)

// DebugKind identifies which diagnostic screen a callback targets.
type DebugKind string

const (
	DebugSuccess DebugKind = "success"
	DebugError   DebugKind = "error"
)

// DebugRoute is a callback addressed to the signer's own diagnostic routes,
// used when the signer is exercised against itself.
type DebugRoute struct {
	Kind   DebugKind `json:"kind"`
	ID     string    `json:"id,omitempty"`
	Code   string    `json:"code,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Event  string    `json:"event,omitempty"`
	Result string    `json:"result,omitempty"`
}

// ParseDebugRoute recognises scheme://debug/success and scheme://debug/error
// links.
func ParseDebugRoute(raw string) (DebugRoute, bool) {
	link, err := core.ParseLink(raw)
	if err != nil || !link.IsDiagnostic() {
		return DebugRoute{}, false
	}
	var kind DebugKind
	switch link.Path {
	case "debug/success":
		kind = DebugSuccess
	case "debug/error":
		kind = DebugError
	default:
		return DebugRoute{}, false
	}
	return DebugRoute{
		Kind:   kind,
		ID:     link.Get("id"),
		Code:   link.Get("code"),
		Reason: link.Get("reason"),
		Event:  core.Unescape(link.Get("event")),
		Result: link.Get("result", "signature", "ciphertext", "plaintext", "pubkey"),
	}, true
}
