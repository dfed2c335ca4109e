package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rexliu/nsign/pkg/config"
	"github.com/rexliu/nsign/pkg/core"
	"github.com/rexliu/nsign/pkg/ipc"
	"github.com/rexliu/nsign/pkg/logging"
	"github.com/rexliu/nsign/pkg/storage/sqlite"
)

func newTestDaemon(t *testing.T, withIdentity bool) *daemon {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultProfile("test")
	cfg.Callback.OpenCommand = "nsign-test-no-such-opener"

	store, err := sqlite.Open(filepath.Join(dir, cfg.Storage.DBPath), sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Init(context.Background()))
	if withIdentity {
		_, err := store.Generate(context.Background(), "test")
		require.NoError(t, err)
	}

	d := newDaemon(dir, cfg, store, logging.New("nsignd-test"))
	t.Cleanup(d.bus.Close)
	return d
}

func params(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func nextEvent(t *testing.T, client *eventClient) callbackEvent {
	t.Helper()
	select {
	case payload := <-client.send:
		var ev callbackEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback event")
		return callbackEvent{}
	}
}

func TestSubmitApproveRoundTrip(t *testing.T) {
	d := newTestDaemon(t, true)
	ctx := context.Background()
	client := d.hub.register()
	defer d.hub.unregister(client)

	link := "nostrsigner://get_public_key?id=1&x-success=" + url.QueryEscape("app://ok")
	res, rpcErr := d.handleSubmit(ctx, params(t, map[string]string{"url": link}))
	require.Nil(t, rpcErr)
	view := res.(requestView)
	assert.Equal(t, core.MethodGetPublicKey, view.Request.Method)
	assert.Equal(t, "loaded", view.State)
	assert.Contains(t, view.Description, "get_public_key")

	res, rpcErr = d.handlePending(ctx, nil)
	require.Nil(t, rpcErr)
	assert.Equal(t, "1", res.(requestView).Request.ID)

	res, rpcErr = d.handleApprove(ctx, nil)
	require.Nil(t, rpcErr)
	outcome := res.(outcomeView)
	assert.True(t, outcome.OK)
	assert.True(t, outcome.Delivered)
	identity, err := d.store.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, identity.PublicKey, outcome.Result["pubkey"])
	assert.True(t, strings.HasPrefix(outcome.CallbackURL, "app://ok?id=1&pubkey="+identity.PublicKey))

	ev := nextEvent(t, client)
	assert.Equal(t, "callback", ev.Type)
	assert.Equal(t, outcome.CallbackURL, ev.URL)

	_, rpcErr = d.handlePending(ctx, nil)
	require.NotNil(t, rpcErr)
	assert.Equal(t, ipc.CodeNotFound, rpcErr.Code)
}

func TestRejectDeliversUserCancelled(t *testing.T) {
	d := newTestDaemon(t, true)
	ctx := context.Background()

	link := "nostrsigner://sign_event?id=5&x-error=" + url.QueryEscape("app://err") + "&event=" + url.QueryEscape(`{"kind":1}`)
	_, rpcErr := d.handleSubmit(ctx, params(t, map[string]string{"url": link}))
	require.Nil(t, rpcErr)

	res, rpcErr := d.handleReject(ctx, nil)
	require.Nil(t, rpcErr)
	outcome := res.(outcomeView)
	assert.False(t, outcome.OK)
	assert.Equal(t, core.CodeUserCancelled, outcome.Code)
	assert.Equal(t, "app://err?code=user_cancelled&reason=User+cancelled&id=5", outcome.CallbackURL)
}

func TestApproveWithoutIdentity(t *testing.T) {
	d := newTestDaemon(t, false)
	ctx := context.Background()

	_, rpcErr := d.handleIdentity(ctx, nil)
	require.NotNil(t, rpcErr)
	assert.Equal(t, ipc.CodeNotFound, rpcErr.Code)

	link := "nostrsigner://get_public_key?x-success=app%3A%2F%2Fok&x-error=app%3A%2F%2Ferr"
	_, rpcErr = d.handleSubmit(ctx, params(t, map[string]string{"url": link}))
	require.Nil(t, rpcErr)
	res, rpcErr := d.handleApprove(ctx, nil)
	require.Nil(t, rpcErr)
	assert.Equal(t, core.CodeNotLoggedIn, res.(outcomeView).Code)
}

func TestSubmitErrors(t *testing.T) {
	d := newTestDaemon(t, true)
	ctx := context.Background()
	client := d.hub.register()
	defer d.hub.unregister(client)

	_, rpcErr := d.handleSubmit(ctx, json.RawMessage(`{"url":"  "}`))
	require.NotNil(t, rpcErr)
	assert.Equal(t, ipc.CodeInvalidRequest, rpcErr.Code)

	_, rpcErr = d.handleSubmit(ctx, params(t, map[string]string{"url": "https://example.com/"}))
	require.NotNil(t, rpcErr)
	assert.Equal(t, ipc.CodeInvalidRequest, rpcErr.Code)

	link := "nostrsigner://?type=bogus&id=2&x-error=" + url.QueryEscape("app://err")
	_, rpcErr = d.handleSubmit(ctx, params(t, map[string]string{"url": link}))
	require.NotNil(t, rpcErr)
	assert.Equal(t, ipc.CodeRejected, rpcErr.Code)
	assert.Equal(t, "unsupported_method", rpcErr.Details["code"])

	ev := nextEvent(t, client)
	assert.Contains(t, ev.URL, "app://err?code=unsupported_method")

	_, rpcErr = d.handleApprove(ctx, nil)
	require.NotNil(t, rpcErr)
	assert.Equal(t, ipc.CodeNotFound, rpcErr.Code)
}

func TestDebugCallbackIsTaggedForWatchers(t *testing.T) {
	d := newTestDaemon(t, true)
	client := d.hub.register()
	defer d.hub.unregister(client)

	d.bus.Publish("nostrsigner://debug/error?code=user_cancelled&id=3")
	ev := nextEvent(t, client)
	assert.Equal(t, "debug", ev.Type)
	require.NotNil(t, ev.Debug)
	assert.Equal(t, "user_cancelled", ev.Debug.Code)
	assert.Nil(t, d.dispatcher.Pending())
}

func TestLoopbackSignerLinkIsLoaded(t *testing.T) {
	d := newTestDaemon(t, true)

	d.bus.Publish("nostrsigner://get_public_key?id=9")
	require.Eventually(t, func() bool {
		req := d.dispatcher.Pending()
		return req != nil && req.ID == "9"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApprovedCallbackToSignerIsLoaded(t *testing.T) {
	d := newTestDaemon(t, true)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		next := fmt.Sprintf("nostrsigner://get_public_key?id=next-%d", i)
		link := fmt.Sprintf("nostrsigner://get_public_key?id=first-%d&x-success=%s", i, url.QueryEscape(next))
		_, rpcErr := d.handleSubmit(ctx, params(t, map[string]string{"url": link}))
		require.Nil(t, rpcErr)

		res, rpcErr := d.handleApprove(ctx, nil)
		require.Nil(t, rpcErr)
		require.True(t, res.(outcomeView).OK)

		want := fmt.Sprintf("next-%d", i)
		require.Eventually(t, func() bool {
			req := d.dispatcher.Pending()
			return req != nil && req.ID == want
		}, 2*time.Second, time.Millisecond, "iteration %d", i)

		_, rpcErr = d.handleReject(ctx, nil)
		require.Nil(t, rpcErr)
	}
}

func TestStreamEndsWithContext(t *testing.T) {
	d := newTestDaemon(t, true)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan string, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.hub.stream(ctx, nil, func(v any) error {
			got <- string(v.(json.RawMessage))
			return nil
		})
	}()
	require.Eventually(t, func() bool { return d.hub.count() == 1 }, time.Second, 5*time.Millisecond)

	d.bus.Publish("app://ok?id=1")
	select {
	case payload := <-got:
		assert.Contains(t, payload, `"url":"app://ok?id=1"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no event streamed")
	}

	cancel()
	<-done
	assert.Equal(t, 0, d.hub.count())
}
