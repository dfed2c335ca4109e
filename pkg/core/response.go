package core

import (
	"net/url"
	"strings"
)

// Param is one outbound query parameter. A nil Value is dropped; an empty
// string is kept.
type Param struct {
	Key   string
	Value *string
}

// P builds a Param with a present value.
func P(key, value string) Param {
	return Param{Key: key, Value: &value}
}

// Lookup returns the value for key among params.
func Lookup(params []Param, key string) (string, bool) {
	for _, p := range params {
		if p.Key == key && p.Value != nil {
			return *p.Value, true
		}
	}
	return "", false
}

// BuildSuccessURL appends id (if set) and params to the request's x-success
// destination. The destination's own query is kept verbatim, so a key the
// caller already put there appears twice with the caller's value first.
func BuildSuccessURL(req *Request, params ...Param) (string, error) {
	if req == nil || req.XSuccess == "" {
		return "", ErrNoSuccessCallback
	}
	var q orderedQuery
	if req.ID != "" {
		q.set("id", req.ID)
	}
	for _, p := range params {
		if p.Value == nil {
			continue
		}
		q.set(p.Key, *p.Value)
	}
	return appendQuery(req.XSuccess, q.encode()), nil
}

// BuildErrorURL builds the error callback. It reports false when the request
// has neither an x-error nor an x-cancel destination.
func BuildErrorURL(req *Request, code ErrorCode, reason string) (string, bool) {
	if req == nil {
		return "", false
	}
	base := req.XError
	if base == "" {
		base = req.XCancel
	}
	if base == "" {
		return "", false
	}
	var q orderedQuery
	q.set("code", string(code))
	q.set("reason", reason)
	if req.ID != "" {
		q.set("id", req.ID)
	}
	return appendQuery(base, q.encode()), true
}

// orderedQuery keeps insertion order; setting an existing key replaces its
// value in place.
type orderedQuery struct {
	keys   []string
	values map[string]string
}

func (q *orderedQuery) set(key, value string) {
	if q.values == nil {
		q.values = make(map[string]string)
	}
	if _, ok := q.values[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.values[key] = value
}

func (q *orderedQuery) encode() string {
	var b strings.Builder
	for i, key := range q.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(q.values[key]))
	}
	return b.String()
}

func appendQuery(base, encoded string) string {
	if encoded == "" {
		return base
	}
	fragment := ""
	if idx := strings.IndexByte(base, '#'); idx >= 0 {
		base, fragment = base[:idx], base[idx:]
	}
	switch {
	case strings.HasSuffix(base, "?"), strings.HasSuffix(base, "&"):
		// separator already present
	case strings.Contains(base, "?"):
		base += "&"
	default:
		base += "?"
	}
	return base + encoded + fragment
}
