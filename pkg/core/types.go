package core

// Method enumerates the operations a caller can ask the signer for.
type Method string

const (
	MethodGetPublicKey    Method = "get_public_key"
	MethodSignEvent       Method = "sign_event"
	MethodNIP04Encrypt    Method = "nip04_encrypt"
	MethodNIP04Decrypt    Method = "nip04_decrypt"
	MethodNIP44Encrypt    Method = "nip44_encrypt"
	MethodNIP44Decrypt    Method = "nip44_decrypt"
	MethodDecryptZapEvent Method = "decrypt_zap_event"
)

// Methods lists every method the parser accepts.
var Methods = []Method{
	MethodGetPublicKey,
	MethodSignEvent,
	MethodNIP04Encrypt,
	MethodNIP04Decrypt,
	MethodNIP44Encrypt,
	MethodNIP44Decrypt,
	MethodDecryptZapEvent,
}

// Known reports whether m is one of the supported method tokens.
func (m Method) Known() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

func (m Method) encrypts() bool {
	return m == MethodNIP04Encrypt || m == MethodNIP44Encrypt
}

func (m Method) decrypts() bool {
	return m == MethodNIP04Decrypt || m == MethodNIP44Decrypt
}

// ReturnType selects the shape of a successful response. The zero value means
// the caller did not ask for a specific shape.
type ReturnType uint8

const (
	ReturnDefault ReturnType = iota
	ReturnSignature
	ReturnEvent
	ReturnCiphertext
	ReturnPlaintext

	numReturnTypes
)

var returnTypeNames = [numReturnTypes]string{
	ReturnDefault:    "",
	ReturnSignature:  "signature",
	ReturnEvent:      "event",
	ReturnCiphertext: "ciphertext",
	ReturnPlaintext:  "plaintext",
}

// responseKeys maps a return type onto the outbound parameter name.
var responseKeys = [numReturnTypes]string{
	ReturnDefault:    "",
	ReturnSignature:  "result",
	ReturnEvent:      "event",
	ReturnCiphertext: "ciphertext",
	ReturnPlaintext:  "plaintext",
}

// ParseReturnType resolves a wire token. Empty input yields ReturnDefault.
func ParseReturnType(token string) (ReturnType, bool) {
	if token == "" {
		return ReturnDefault, true
	}
	for rt := ReturnSignature; rt < numReturnTypes; rt++ {
		if returnTypeNames[rt] == token {
			return rt, true
		}
	}
	return ReturnDefault, false
}

func (r ReturnType) String() string {
	if r >= numReturnTypes {
		return ""
	}
	return returnTypeNames[r]
}

// ResponseKey returns the outbound parameter name for r, or "" for ReturnDefault.
func (r ReturnType) ResponseKey() string {
	if r >= numReturnTypes {
		return ""
	}
	return responseKeys[r]
}

// MarshalText renders the wire token.
func (r ReturnType) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Compression enumerates payload encodings a caller may announce.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
)

// Payload holds the method-specific inputs. Only the fields relevant to the
// request method are populated by the parser.
type Payload struct {
	EventJSON     string `json:"event,omitempty"`
	Plaintext     string `json:"plaintext,omitempty"`
	EncryptedText string `json:"encryptedText,omitempty"`
	Pubkey        string `json:"pubkey,omitempty"`
}

// Request is an immutable, validated description of one inbound ask.
type Request struct {
	Method      Method      `json:"type"`
	ID          string      `json:"id,omitempty"`
	XSuccess    string      `json:"xSuccess,omitempty"`
	XError      string      `json:"xError,omitempty"`
	XCancel     string      `json:"xCancel,omitempty"`
	CurrentUser string      `json:"currentUser,omitempty"`
	ReturnType  ReturnType  `json:"returnType,omitempty"`
	Compression Compression `json:"compressionType,omitempty"`
	Payload     Payload     `json:"payload"`
	RawURL      string      `json:"rawUrl"`
}

// HasErrorDestination reports whether failures can be reported to the caller.
func (r *Request) HasErrorDestination() bool {
	return r != nil && (r.XError != "" || r.XCancel != "")
}
