package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/rexliu/nsign/pkg/core"
)

// HandlerFunc processes RPC params and returns a result or structured error.
type HandlerFunc func(context.Context, json.RawMessage) (any, *Error)

// StreamFunc pushes values through send until it returns or ctx is cancelled.
// The context is cancelled when the client hangs up.
type StreamFunc func(ctx context.Context, params json.RawMessage, send func(any) error) *Error

// Logger is satisfied by logging.Logger; kept minimal to avoid dependency cycles.
type Logger interface {
	Printf(format string, v ...any)
}

// Server listens for IPC requests over Unix sockets.
type Server struct {
	ln       net.Listener
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	streams  map[string]StreamFunc
	closed   bool
	logger   Logger
	wg       sync.WaitGroup
}

// NewServer constructs an IPC server.
func NewServer(logger Logger) *Server {
	return &Server{
		handlers: make(map[string]HandlerFunc),
		streams:  make(map[string]StreamFunc),
		logger:   logger,
	}
}

// Register installs a handler for a method.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

// RegisterStream installs a streaming handler. A connection that calls a
// streaming method is dedicated to it until the stream ends.
func (s *Server) RegisterStream(method string, handler StreamFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[method] = handler
}

// Start begins accepting connections on endpoint. A stale socket file left by
// a previous run is removed first.
func (s *Server) Start(ctx context.Context, endpoint string) error {
	if s == nil {
		return errors.New("nil server")
	}
	if err := removeStaleSocket(endpoint); err != nil {
		return err
	}
	ln, err := net.Listen("unix", endpoint)
	if err != nil {
		return err
	}
	if err := os.Chmod(endpoint, 0o600); err != nil {
		ln.Close()
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

func removeStaleSocket(endpoint string) error {
	info, err := os.Lstat(endpoint)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return errors.New("refusing to replace non-socket " + endpoint)
	}
	if conn, err := net.Dial("unix", endpoint); err == nil {
		conn.Close()
		return errors.New("another daemon is listening on " + endpoint)
	}
	return os.Remove(endpoint)
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return
			}
			s.logf("accept error: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		payload, err := readFrame(conn)
		if err != nil {
			return
		}
		traceID := core.NewTraceID("ipc")
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			s.writeError(conn, req.ID, traceID, CodeInvalidRequest, "invalid json", nil)
			continue
		}
		if stream := s.lookupStream(req.Type); stream != nil {
			s.serveStream(ctx, conn, req, traceID, stream)
			return
		}
		handler := s.lookupHandler(req.Type)
		if handler == nil {
			s.writeError(conn, req.ID, traceID, CodeUnknownMethod, "unknown method", map[string]any{"method": req.Type})
			continue
		}
		result, rpcErr := s.invoke(ctx, handler, req)
		resp := Response{ID: req.ID, TraceID: traceID}
		if rpcErr != nil {
			resp.Error = rpcErr
			s.logf("%s %s failed: %s", traceID, req.Type, rpcErr.Error())
		} else {
			raw, err := json.Marshal(result)
			if err != nil {
				s.writeError(conn, req.ID, traceID, CodeInternal, err.Error(), nil)
				continue
			}
			resp.OK = true
			resp.Result = raw
		}
		if err := s.writeResponse(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) invoke(ctx context.Context, handler HandlerFunc, req Request) (result any, rpcErr *Error) {
	defer func() {
		if r := recover(); r != nil {
			s.logf("handler %s panicked: %v", req.Type, r)
			result, rpcErr = nil, Errorf(CodeInternal, "handler panicked", nil)
		}
	}()
	return handler(ctx, req.Params)
}

func (s *Server) serveStream(ctx context.Context, conn net.Conn, req Request, traceID string, stream StreamFunc) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// The client sends nothing more on a stream; EOF means it went away.
	go func() {
		io.Copy(io.Discard, conn)
		cancel()
	}()

	var writeMu sync.Mutex
	send := func(v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return s.writeResponse(conn, Response{ID: req.ID, OK: true, Event: true, Result: raw, TraceID: traceID})
	}
	rpcErr := stream(ctx, req.Params, send)
	final := Response{ID: req.ID, OK: rpcErr == nil, Error: rpcErr, TraceID: traceID}
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = s.writeResponse(conn, final)
}

func (s *Server) lookupHandler(method string) HandlerFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[method]
}

func (s *Server) lookupStream(method string) StreamFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streams[method]
}

func (s *Server) writeResponse(conn net.Conn, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return writeFrame(conn, payload)
}

func (s *Server) writeError(conn net.Conn, id, traceID, code, msg string, details map[string]any) {
	resp := Response{ID: id, TraceID: traceID}
	resp.Error = &Error{Code: code, Message: msg, Details: details}
	_ = s.writeResponse(conn, resp)
}

// Stop shuts down the listener and waits for the accept loop to exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	err := ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Server) logf(format string, v ...any) {
	if s.logger != nil {
		s.logger.Printf(format, v...)
	} else {
		log.Printf(format, v...)
	}
}
