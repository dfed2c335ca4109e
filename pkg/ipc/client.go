package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rexliu/nsign/pkg/core"
)

// Client issues requests over a single connection. Calls are serialised.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
}

// Dial connects to the daemon socket.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(ctx context.Context, method string, params any) (string, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return "", err
		}
		raw = b
	}
	req := Request{ID: core.NewTraceID("cli"), Type: method, Params: raw}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}
	return req.ID, writeFrame(c.conn, payload)
}

func (c *Client) receive() (*Response, error) {
	payload, err := readFrame(c.conn)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Call invokes a unary method and decodes the result into out when out is
// non-nil. Daemon failures are returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.send(ctx, method, params); err != nil {
		return err
	}
	resp, err := c.receive()
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}

// Stream invokes a streaming method and calls fn for every event until the
// daemon ends the stream, fn fails or ctx is cancelled. The connection cannot
// be reused afterwards.
func (c *Client) Stream(ctx context.Context, method string, params any, fn func(json.RawMessage) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.send(context.Background(), method, params); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()
	for {
		resp, err := c.receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if resp.Error != nil {
			return resp.Error
		}
		if !resp.Event {
			return nil
		}
		if err := fn(resp.Result); err != nil {
			return err
		}
	}
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}
