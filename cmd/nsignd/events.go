package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rexliu/nsign/pkg/callback"
	"github.com/rexliu/nsign/pkg/ipc"
)

// callbackEvent is streamed to watchers for every URL that reached the bus.
type callbackEvent struct {
	Type  string               `json:"type"`
	URL   string               `json:"url"`
	At    int64                `json:"at"`
	Debug *callback.DebugRoute `json:"debug,omitempty"`
}

// eventHub broadcasts callback events to connected clients.
type eventHub struct {
	logger  ipc.Logger
	mu      sync.Mutex
	clients map[*eventClient]struct{}
}

type eventClient struct {
	send chan []byte
}

func newEventHub(logger ipc.Logger) *eventHub {
	return &eventHub{
		logger:  logger,
		clients: make(map[*eventClient]struct{}),
	}
}

func (h *eventHub) register() *eventClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	client := &eventClient{send: make(chan []byte, 16)}
	h.clients[client] = struct{}{}
	return client
}

func (h *eventHub) unregister(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// publishCallback is subscribed to the callback bus.
func (h *eventHub) publishCallback(url string) {
	ev := callbackEvent{Type: "callback", URL: url, At: time.Now().UnixMilli()}
	if route, ok := callback.ParseDebugRoute(url); ok {
		ev.Type = "debug"
		ev.Debug = &route
	}
	h.broadcast(ev)
}

func (h *eventHub) broadcast(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("event marshal error: %v", err)
		}
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			if h.logger != nil {
				h.logger.Printf("dropping event for slow client")
			}
		}
	}
}

// stream serves subscribe_callbacks until the client leaves.
func (h *eventHub) stream(ctx context.Context, _ json.RawMessage, send func(any) error) *ipc.Error {
	client := h.register()
	defer h.unregister(client)
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-client.send:
			if !ok {
				return nil
			}
			if err := send(json.RawMessage(payload)); err != nil {
				return nil
			}
		}
	}
}
