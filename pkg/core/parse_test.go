package core

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleLink = "nostrsigner://sign_event?type=sign_event&id=42&x-success=https%3A%2F%2Fcb%2Fok&event=%7B%22kind%22%3A1%2C%22content%22%3A%22hi%22%7D"

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var protoErr *Error
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, code, protoErr.Code)
}

func TestIsSignerURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"native scheme with type", "nostrsigner://?type=get_public_key", true},
		{"native scheme with path", "nostrsigner://sign_event", true},
		{"native scheme unknown method still routed", "nostrsigner://whatever", true},
		{"test app scheme", "nip55-ios-test://nip44_encrypt?pubkey=ab", true},
		{"opaque native link", "nostrsigner:get_public_key", true},
		{"debug host", "nostrsigner://debug/success?id=1", false},
		{"debug path on dev wrapper", "exp://127.0.0.1:8081/--/debug/error?code=x", false},
		{"dev wrapper known path", "exp://127.0.0.1:8081/--/sign_event?event=%7B%7D", true},
		{"dev wrapper known type", "exp://127.0.0.1:8081?type=nip04_decrypt", true},
		{"dev wrapper unknown path", "exp://127.0.0.1:8081/--/settings", false},
		{"dev wrapper empty", "exp://127.0.0.1:8081", false},
		{"web link", "https://example.com/sign_event?type=sign_event", false},
		{"no scheme", "sign_event?type=sign_event", false},
		{"empty", "", false},
		{"garbage", "::::", false},
		{"control characters", "nostrsigner://\x7f", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSignerURL(tt.raw))
		})
	}
}

func TestParseLink(t *testing.T) {
	t.Run("host becomes first path segment", func(t *testing.T) {
		link, err := ParseLink("nostrsigner://sign_event/extra?type=x")
		require.NoError(t, err)
		assert.Equal(t, "nostrsigner", link.Scheme)
		assert.Equal(t, "sign_event", link.Host)
		assert.Equal(t, "sign_event/extra", link.Path)
		assert.Equal(t, "x", link.Query.Get("type"))
	})

	t.Run("dev wrapper strips marker", func(t *testing.T) {
		link, err := ParseLink("exp://10.0.0.2:19000/--/nip44_decrypt")
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.2", link.Host)
		assert.Equal(t, "nip44_decrypt", link.Path)
	})

	t.Run("alias lookup returns first non-empty", func(t *testing.T) {
		link, err := ParseLink("nostrsigner://?x-success=&xSuccess=https%3A%2F%2Fa")
		require.NoError(t, err)
		assert.Equal(t, "https://a", link.Get("x-success", "xSuccess"))
	})
}

func TestParse(t *testing.T) {
	t.Run("example sign_event link", func(t *testing.T) {
		req, err := Parse(exampleLink)
		require.NoError(t, err)
		assert.Equal(t, MethodSignEvent, req.Method)
		assert.Equal(t, "42", req.ID)
		assert.Equal(t, "https://cb/ok", req.XSuccess)
		assert.Equal(t, `{"kind":1,"content":"hi"}`, req.Payload.EventJSON)
		assert.Equal(t, CompressionNone, req.Compression)
		assert.Equal(t, ReturnDefault, req.ReturnType)
		assert.Equal(t, exampleLink, req.RawURL)
	})

	t.Run("method from path", func(t *testing.T) {
		req, err := Parse("nostrsigner://get_public_key?id=7")
		require.NoError(t, err)
		assert.Equal(t, MethodGetPublicKey, req.Method)
	})

	t.Run("type parameter wins over path", func(t *testing.T) {
		req, err := Parse("nostrsigner://sign_event?type=nip04_encrypt")
		require.NoError(t, err)
		assert.Equal(t, MethodNIP04Encrypt, req.Method)
	})

	t.Run("only relevant payload fields are populated", func(t *testing.T) {
		all := "&event=%7B%7D&plaintext=hello&encryptedText=c2VjcmV0&pubkey=abcd"
		want := map[Method]Payload{
			MethodGetPublicKey:    {},
			MethodSignEvent:       {EventJSON: "{}"},
			MethodDecryptZapEvent: {EventJSON: "{}"},
			MethodNIP04Encrypt:    {Plaintext: "hello", Pubkey: "abcd"},
			MethodNIP44Encrypt:    {Plaintext: "hello", Pubkey: "abcd"},
			MethodNIP04Decrypt:    {EncryptedText: "c2VjcmV0", Pubkey: "abcd"},
			MethodNIP44Decrypt:    {EncryptedText: "c2VjcmV0", Pubkey: "abcd"},
		}
		for _, m := range Methods {
			req, err := Parse("nostrsigner://?type=" + string(m) + all)
			require.NoError(t, err, m)
			assert.Equal(t, m, req.Method)
			assert.Equal(t, want[m], req.Payload, m)
		}
	})

	t.Run("snake and camel aliases", func(t *testing.T) {
		raw := "nostrsigner://?type=nip44_decrypt" +
			"&xSuccess=" + url.QueryEscape("app://ok") +
			"&xError=" + url.QueryEscape("app://err") +
			"&x_cancel=" + url.QueryEscape("app://cancel") +
			"&currentUser=ABCD&encrypted_text=xyz&pubkey=ff&return_type=plaintext"
		req, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "app://ok", req.XSuccess)
		assert.Equal(t, "app://err", req.XError)
		assert.Equal(t, "app://cancel", req.XCancel)
		assert.Equal(t, "ABCD", req.CurrentUser)
		assert.Equal(t, "xyz", req.Payload.EncryptedText)
		assert.Equal(t, ReturnPlaintext, req.ReturnType)
	})

	t.Run("missing method is invalid_request", func(t *testing.T) {
		for _, raw := range []string{"nostrsigner://?id=1", "nostrsigner:", "nostrsigner://?type=%20"} {
			_, err := Parse(raw)
			requireCode(t, err, CodeInvalidRequest)
		}
	})

	t.Run("unknown method is unsupported_method", func(t *testing.T) {
		for _, raw := range []string{"nostrsigner://?type=sign_everything", "nostrsigner://delete_account"} {
			_, err := Parse(raw)
			requireCode(t, err, CodeUnsupportedMethod)
		}
	})

	t.Run("compression is payload_too_large for every method", func(t *testing.T) {
		for _, m := range Methods {
			_, err := Parse("nostrsigner://?type=" + string(m) + "&compressionType=gzip")
			requireCode(t, err, CodePayloadTooLarge)
		}
		_, err := Parse("nostrsigner://?type=sign_event&compressionType=brotli")
		requireCode(t, err, CodePayloadTooLarge)
	})

	t.Run("explicit none compression is accepted", func(t *testing.T) {
		req, err := Parse("nostrsigner://?type=sign_event&compressionType=none")
		require.NoError(t, err)
		assert.Equal(t, CompressionNone, req.Compression)
	})

	t.Run("unknown returnType is invalid_request", func(t *testing.T) {
		_, err := Parse("nostrsigner://?type=sign_event&returnType=jwt")
		requireCode(t, err, CodeInvalidRequest)
	})

	t.Run("failure keeps callback destinations", func(t *testing.T) {
		req, err := Parse("nostrsigner://?type=bogus&id=9&x-error=" + url.QueryEscape("app://err"))
		requireCode(t, err, CodeUnsupportedMethod)
		require.NotNil(t, req)
		assert.Equal(t, "9", req.ID)
		assert.Equal(t, "app://err", req.XError)
		assert.Empty(t, req.Method)
	})

	t.Run("unparsable link has no partial request", func(t *testing.T) {
		req, err := Parse("::::")
		requireCode(t, err, CodeInvalidRequest)
		assert.Nil(t, req)
	})
}
