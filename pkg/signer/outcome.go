package signer

import (
	"github.com/rexliu/nsign/pkg/core"
)

// Outcome records how a request was resolved.
type Outcome struct {
	Request *core.Request `json:"request"`
	// Params holds the success parameters; nil on failure.
	Params []core.Param `json:"-"`
	// Err is the classified failure; nil on success.
	Err *core.Error `json:"error,omitempty"`
	// CallbackURL is the URL handed to the deliverer, empty when the failure
	// had no destination.
	CallbackURL string `json:"callbackUrl,omitempty"`
	Delivered   bool   `json:"delivered"`
	// Message is a short local status line.
	Message string `json:"message"`
}

// OK reports whether the request succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Result returns the values sent on the success URL, id excluded.
func (o Outcome) Result() map[string]string {
	if o.Params == nil {
		return nil
	}
	out := make(map[string]string, len(o.Params))
	for _, p := range o.Params {
		if p.Value != nil {
			out[p.Key] = *p.Value
		}
	}
	return out
}

func successMessage(m core.Method) string {
	switch m {
	case core.MethodGetPublicKey:
		return "Shared public key with caller."
	case core.MethodSignEvent:
		return "Signed event dispatched to callback."
	case core.MethodNIP04Encrypt:
		return "Encrypted message dispatched."
	case core.MethodNIP04Decrypt:
		return "Decrypted message dispatched."
	case core.MethodNIP44Encrypt:
		return "NIP-44 encryption dispatched."
	case core.MethodNIP44Decrypt:
		return "NIP-44 decryption dispatched."
	default:
		return "Response dispatched."
	}
}
