package core

import (
	"errors"
	"net/url"
	"strings"
)

const (
	// SchemeNostrSigner is the canonical signer scheme.
	SchemeNostrSigner = "nostrsigner"
	// SchemeTestApp is the scheme registered by the test requester app.
	SchemeTestApp = "nip55-ios-test"
	// SchemeDevWrapper is the development client scheme; it carries arbitrary
	// app links so it is only accepted for known methods.
	SchemeDevWrapper = "exp"

	debugHost       = "debug"
	debugPathPrefix = "debug/"
	devPathMarker   = "/--/"
)

var errMalformedLink = errors.New("malformed url")

// Link is the scheme/host/path/query split of an inbound deep link.
type Link struct {
	Scheme string
	Host   string
	Path   string
	Query  url.Values
}

// Get returns the first non-empty value among the given parameter aliases.
func (l Link) Get(keys ...string) string {
	for _, key := range keys {
		if v := l.Query.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// IsDiagnostic reports whether the link targets a reserved debug route.
func (l Link) IsDiagnostic() bool {
	return l.Host == debugHost || strings.HasPrefix(l.Path, debugPathPrefix)
}

// MethodToken extracts the method from the type parameter, falling back to the path.
func (l Link) MethodToken() string {
	if t := strings.TrimSpace(l.Query.Get("type")); t != "" {
		return t
	}
	return strings.TrimSpace(l.Path)
}

// ParseLink splits raw into a Link. For app schemes the host is treated as the
// first path segment, so nostrsigner://sign_event has path "sign_event".
func ParseLink(raw string) (Link, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Link{}, errMalformedLink
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, err
	}
	if u.Scheme == "" {
		return Link{}, errMalformedLink
	}
	// Malformed pairs are skipped; the remaining parameters are still usable.
	query, _ := url.ParseQuery(u.RawQuery)

	link := Link{
		Scheme: strings.ToLower(u.Scheme),
		Host:   u.Hostname(),
		Query:  query,
	}
	switch {
	case u.Opaque != "":
		link.Path = strings.Trim(u.Opaque, "/")
	case link.Scheme == SchemeDevWrapper:
		path := u.Path
		if idx := strings.Index(path, devPathMarker); idx >= 0 {
			path = path[idx+len(devPathMarker):]
		}
		link.Path = strings.Trim(path, "/")
	case link.Scheme == "http" || link.Scheme == "https":
		link.Path = strings.Trim(u.Path, "/")
	default:
		link.Path = strings.Trim(u.Host+u.Path, "/")
	}
	return link, nil
}

// IsSignerURL is a cheap check deciding whether raw belongs to the signer
// protocol. It never panics and never returns an error.
func IsSignerURL(raw string) bool {
	link, err := ParseLink(raw)
	if err != nil {
		return false
	}
	if link.IsDiagnostic() {
		return false
	}
	switch link.Scheme {
	case SchemeNostrSigner, SchemeTestApp:
		return true
	case SchemeDevWrapper:
		token := link.MethodToken()
		return token != "" && Method(token).Known()
	default:
		return false
	}
}

// Parse turns raw into a validated Request. Failures are *Error values
// classified as invalid_request, unsupported_method or payload_too_large.
//
// When the link itself was readable, the returned Request is non-nil even on
// failure and carries only the id and callback destinations, so the failure can
// still be reported to the caller.
func Parse(raw string) (*Request, error) {
	link, err := ParseLink(raw)
	if err != nil {
		return nil, Errorf(CodeInvalidRequest, "malformed url")
	}

	req := &Request{
		ID:          link.Get("id"),
		XSuccess:    link.Get("x-success", "xSuccess", "x_success"),
		XError:      link.Get("x-error", "xError", "x_error"),
		XCancel:     link.Get("x-cancel", "xCancel", "x_cancel"),
		CurrentUser: link.Get("current_user", "currentUser"),
		RawURL:      raw,
	}

	token := link.MethodToken()
	if token == "" {
		return req, Errorf(CodeInvalidRequest, "missing type")
	}
	method := Method(token)
	if !method.Known() {
		return req, Errorf(CodeUnsupportedMethod, "%s", token)
	}
	req.Method = method

	compression := Compression(link.Get("compressionType", "compression_type"))
	if compression == "" {
		compression = CompressionNone
	}
	if compression != CompressionNone {
		return req, Errorf(CodePayloadTooLarge, "compressionType %s not supported", compression)
	}
	req.Compression = compression

	returnType, ok := ParseReturnType(link.Get("returnType", "return_type"))
	if !ok {
		return req, Errorf(CodeInvalidRequest, "unknown returnType %q", link.Get("returnType", "return_type"))
	}
	req.ReturnType = returnType

	req.Payload = payloadFor(method, link)
	return req, nil
}

func payloadFor(method Method, link Link) Payload {
	switch {
	case method == MethodSignEvent || method == MethodDecryptZapEvent:
		return Payload{EventJSON: link.Get("event")}
	case method.encrypts():
		return Payload{Plaintext: link.Get("plaintext"), Pubkey: link.Get("pubkey")}
	case method.decrypts():
		return Payload{EncryptedText: link.Get("encryptedText", "encrypted_text"), Pubkey: link.Get("pubkey")}
	default:
		return Payload{}
	}
}
