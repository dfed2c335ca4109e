package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/rexliu/nsign/pkg/config"
	"github.com/rexliu/nsign/pkg/ipc"
	"github.com/rexliu/nsign/pkg/logging"
)

// message represents the native messaging envelope, one JSON object per line.
type message struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type reply struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data,omitempty"`
}

type errorData struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// caller is satisfied by *ipc.Client.
type caller interface {
	Call(ctx context.Context, method string, params, out any) error
}

// routes maps bridge message types onto daemon methods.
var routes = map[string]string{
	"ping":     "ping",
	"identity": "identity",
	"open":     "submit",
	"pending":  "pending",
	"approve":  "approve",
	"reject":   "reject",
}

func main() {
	profile := flag.String("profile", config.Directory("default"), "Path to profile directory")
	socket := flag.String("socket", "", "Override IPC socket path (optional)")
	flag.Parse()

	// stdout carries the protocol.
	logger := logging.NewWriter(os.Stderr, "nsign-bridge")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := *socket
	if path == "" {
		cfg, err := config.LoadProfile(*profile)
		if err != nil {
			logger.Error().Err(err).Msg("load config")
			os.Exit(1)
		}
		path = config.ResolvePath(*profile, cfg.IPC.SocketPath)
	}
	client, err := ipc.Dial(ctx, path)
	if err != nil {
		logger.Error().Err(err).Str("socket", path).Msg("dial daemon")
		os.Exit(1)
	}
	defer client.Close()

	if err := serve(ctx, os.Stdin, os.Stdout, client, logger.Component("bridge")); err != nil {
		logger.Error().Err(err).Msg("bridge exiting")
		os.Exit(1)
	}
}

// serve answers each inbound line with exactly one reply line until r is
// exhausted or ctx is cancelled.
func serve(ctx context.Context, r io.Reader, w io.Writer, daemon caller, log zerolog.Logger) error {
	reader := bufio.NewReader(r)
	writer := bufio.NewWriter(w)
	defer writer.Flush()
	enc := json.NewEncoder(writer)
	enc.SetEscapeHTML(false)

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if werr := enc.Encode(handle(ctx, line, daemon, log)); werr != nil {
				return fmt.Errorf("write reply: %w", werr)
			}
			if werr := writer.Flush(); werr != nil {
				return fmt.Errorf("flush reply: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func handle(ctx context.Context, line []byte, daemon caller, log zerolog.Logger) reply {
	var msg message
	if err := json.Unmarshal(line, &msg); err != nil {
		log.Warn().Err(err).Msg("invalid message")
		return errorReply("", ipc.CodeInvalidRequest, "invalid message", nil)
	}
	method, ok := routes[msg.Type]
	if !ok {
		return errorReply(msg.ID, ipc.CodeUnknownMethod, fmt.Sprintf("unknown message type %q", msg.Type), nil)
	}
	var params any
	if len(msg.Data) > 0 {
		params = msg.Data
	}
	var result json.RawMessage
	if err := daemon.Call(ctx, method, params, &result); err != nil {
		var rpcErr *ipc.Error
		if errors.As(err, &rpcErr) {
			return errorReply(msg.ID, rpcErr.Code, rpcErr.Message, rpcErr.Details)
		}
		log.Error().Err(err).Str("type", msg.Type).Msg("daemon call failed")
		return errorReply(msg.ID, ipc.CodeInternal, err.Error(), nil)
	}
	return reply{Type: "result", ID: msg.ID, Data: result}
}

func errorReply(id, code, message string, details map[string]any) reply {
	return reply{Type: "error", ID: id, Data: errorData{Code: code, Message: message, Details: details}}
}
