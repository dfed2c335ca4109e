package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexliu/nsign/pkg/core"
	"github.com/rexliu/nsign/pkg/ipc"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInitAndKeys(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", "--profile", dir, "--name", "work")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized profile work")
	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)

	_, err = execute(t, "init", "--profile", dir)
	require.Error(t, err)

	out, err = execute(t, "keys", "generate", "--profile", dir, "--label", "main", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "npub:    npub1")

	out, err = execute(t, "keys", "import", "nsec1vl029mgpspedva04g90vltkh6fvh240zqtv9k0t9af8935ke9laqsnlfe5", "--profile", dir, "--label", "imported", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "label:   imported")

	out, err = execute(t, "keys", "list", "--profile", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "imported")

	out, err = execute(t, "keys", "show", "--profile", dir, "--secret", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "nsec1vl029mgpspedva04g90vltkh6fvh240zqtv9k0t9af8935ke9laqsnlfe5")

	out, err = execute(t, "keys", "forget", "--profile", dir, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "forgot 2 key(s)")

	_, err = execute(t, "keys", "show", "--profile", dir, "--secret=false")
	require.Error(t, err)
}

func TestKeysImportRejectsNonNsec(t *testing.T) {
	_, err := execute(t, "keys", "import", "npub10elfcs4fr0l0r8af98jlmgdh9c8tcxjvz9qkw038js35mp4dma8qzvjptg", "--profile", t.TempDir(), "--yes")
	require.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	link := "nostrsigner://sign_event?id=42&event=%7B%22kind%22%3A1%2C%22content%22%3A%22hi%22%7D"
	out, err := execute(t, "check", link)
	require.NoError(t, err)
	assert.Contains(t, out, "Request: sign_event")
	assert.Contains(t, out, "id: 42")
	assert.Contains(t, out, `"content": "hi"`)

	out, err = execute(t, "check", "nostrsigner://?type=bogus&x-error=app%3A%2F%2Ferr")
	require.Error(t, err)
	assert.Contains(t, out, "Unsupported method")
	assert.Contains(t, out, "error callback: app://err?code=unsupported_method")

	_, err = execute(t, "check", "https://example.com")
	assert.ErrorIs(t, err, core.ErrNotSignerURL)
}

func TestRenderOutcome(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderOutcome(&buf, outcomeView{OK: true, Message: "Signed event dispatched to callback.", CallbackURL: "app://ok?id=1", Delivered: true}))
	assert.Equal(t, "Signed event dispatched to callback.\ncallback: app://ok?id=1\n", buf.String())

	buf.Reset()
	require.NoError(t, renderOutcome(&buf, outcomeView{Message: "User cancelled", Code: "user_cancelled"}))
	assert.Contains(t, buf.String(), "User cancelled (user_cancelled)")
	assert.Contains(t, buf.String(), "nothing was sent")
}

func TestDescribeRPCError(t *testing.T) {
	err := describeRPCError(ipc.Errorf(ipc.CodeRejected, "x", map[string]any{"friendly": "Invalid request: missing event"}))
	assert.EqualError(t, err, "Invalid request: missing event")

	err = describeRPCError(ipc.Errorf(ipc.CodeBusy, "busy", nil))
	assert.EqualError(t, err, "signer is busy with another request")

	plain := errors.New("boom")
	assert.Same(t, plain, describeRPCError(plain))
}

func TestFormatCallbackEvent(t *testing.T) {
	line := formatCallbackEvent(json.RawMessage(`{"type":"callback","url":"app://ok?id=1","at":0}`))
	assert.True(t, strings.HasSuffix(line, " callback app://ok?id=1"))

	line = formatCallbackEvent(json.RawMessage(`{"type":"debug","url":"u","at":0,"debug":{"kind":"error","code":"user_cancelled","id":"3"}}`))
	assert.True(t, strings.HasSuffix(line, " debug error id=3 code=user_cancelled"))

	assert.Equal(t, "garbage", formatCallbackEvent(json.RawMessage("garbage")))
}
