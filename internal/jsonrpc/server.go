// Package jsonrpc implements newline-delimited JSON-RPC 2.0.
package jsonrpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// Standard and server error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Method handles a JSON-RPC method call. Returning an *Error controls the
// error code of the response; any other error is an internal error.
type Method func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationFunc handles a JSON-RPC notification. Notifications have no
// response, so there is nothing to return.
type NotificationFunc func(ctx context.Context, method string, params json.RawMessage)

// Server implements a JSON-RPC 2.0 server
type Server struct {
	methods sync.Map // map[string]Method
	notify  NotificationFunc
	logger  *slog.Logger
}

// NewServer creates a new JSON-RPC server. A nil logger discards output.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{logger: logger}
}

// RegisterMethod registers a method handler
func (s *Server) RegisterMethod(name string, method Method) {
	s.methods.Store(name, method)
}

// HandleNotifications sets the function that receives notifications.
func (s *Server) HandleNotifications(fn NotificationFunc) {
	s.notify = fn
}

// Request represents a JSON-RPC request or, without an ID, a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether r carries no ID.
func (r *Request) IsNotification() bool { return len(r.ID) == 0 }

// Response represents a JSON-RPC response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Errorf returns an *Error with the given code.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Serve reads requests from r and writes responses to w, one JSON value per
// line, until r is exhausted or fails or ctx is done. Requests are handled
// one at a time in arrival order. A line that is not valid JSON gets a parse
// error response and does not end the session.
//
// When ctx is done Serve returns ctx.Err() without waiting for the pending
// read; the reading goroutine exits once r returns.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				select {
				case lines <- line:
				case <-stop:
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		case line := <-lines:
			if resp := s.handle(ctx, line); resp != nil {
				if err := WriteMessage(w, resp); err != nil {
					return fmt.Errorf("encode error: %w", err)
				}
			}
		}
	}
}

func (s *Server) handle(ctx context.Context, line []byte) *Response {
	line = bytes.TrimSpace(line)
	if !json.Valid(line) {
		s.logger.WarnContext(ctx, "jsonrpc.parse.fail")
		return errorResponse(nil, Errorf(CodeParseError, "parse error"))
	}
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(nil, Errorf(CodeInvalidRequest, "invalid request: %v", err))
	}
	if req.JSONRPC != Version || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, Errorf(CodeInvalidRequest, "invalid JSON-RPC request"))
	}

	if req.IsNotification() {
		if s.notify != nil {
			s.notify(ctx, req.Method, req.Params)
		}
		return nil
	}

	v, ok := s.methods.Load(req.Method)
	if !ok {
		return errorResponse(req.ID, Errorf(CodeMethodNotFound, "method %q not found", req.Method))
	}
	result, err := call(ctx, v.(Method), req.Params)
	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = Errorf(CodeInternalError, "%v", err)
		}
		s.logger.DebugContext(ctx, "jsonrpc.call.fail", slog.String("method", req.Method), slog.String("err", err.Error()))
		return errorResponse(req.ID, rpcErr)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(req.ID, Errorf(CodeInternalError, "marshal error: %v", err))
	}
	return &Response{JSONRPC: Version, ID: req.ID, Result: data}
}

func call(ctx context.Context, m Method, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Errorf(CodeInternalError, "internal error: %v", r)
		}
	}()
	return m(ctx, params)
}

func errorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err}
}

// WriteMessage writes v as a single line of JSON.
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
