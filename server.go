package mcpcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/tmc/mcpcore/internal/jsonrpc"
)

// CodeLifecycle is the JSON-RPC error code for requests that are not valid
// in the session's current state.
const CodeLifecycle = -32002

// Server wraps an MCP service for network serving.
type Server struct {
	service *Service
}

// NewServer creates a new MCP server.
func NewServer(service *Service) *Server {
	return &Server{service: service}
}

// Serve serves a single transport until it is exhausted or ctx is done.
func (s *Server) Serve(ctx context.Context, t Transport) error {
	return s.ServeConn(ctx, t)
}

// ServeConn serves a single connection with a fresh session. The
// connection is closed when ServeConn returns.
func (s *Server) ServeConn(ctx context.Context, conn io.ReadWriteCloser) error {
	sess := s.service.NewSession()
	defer sess.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	rpc := jsonrpc.NewServer(sess.logger)
	bind(rpc, sess)
	err := rpc.Serve(ctx, conn, conn)
	if ctx.Err() != nil {
		// Closing the connection on cancellation makes reads fail.
		return nil
	}
	return err
}

func bind(rpc *jsonrpc.Server, sess *Session) {
	rpc.RegisterMethod(MethodInitialize, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params InitializeParams
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
		res, err := sess.Initialize(ctx, &params)
		return res, rpcError(err)
	})
	rpc.RegisterMethod(MethodPing, func(ctx context.Context, _ json.RawMessage) (any, error) {
		if err := sess.Ping(ctx); err != nil {
			return nil, rpcError(err)
		}
		return struct{}{}, nil
	})
	rpc.RegisterMethod(MethodListTools, func(ctx context.Context, _ json.RawMessage) (any, error) {
		tools, err := sess.ListTools(ctx)
		if err != nil {
			return nil, rpcError(err)
		}
		return &ListToolsResult{Tools: tools}, nil
	})
	rpc.RegisterMethod(MethodCallTool, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params CallToolParams
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
		if params.Name == "" {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "missing tool name")
		}
		res, err := sess.CallTool(ctx, params.Name, params.Arguments)
		return res, rpcError(err)
	})
	rpc.RegisterMethod(MethodListResources, func(ctx context.Context, _ json.RawMessage) (any, error) {
		resources, err := sess.ListResources(ctx)
		if err != nil {
			return nil, rpcError(err)
		}
		return &ListResourcesResult{Resources: resources}, nil
	})
	rpc.RegisterMethod(MethodReadResource, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params ReadResourceParams
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
		if params.URI == "" {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "missing resource uri")
		}
		res, err := sess.ReadResource(ctx, params.URI)
		return res, rpcError(err)
	})
	rpc.HandleNotifications(func(ctx context.Context, method string, params json.RawMessage) {
		if err := sess.Notify(ctx, method, params); err != nil {
			sess.logger.DebugContext(ctx, "notification.drop", slog.String("method", method), slog.String("err", err.Error()))
		}
	})
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	// Numbers stay json.Number so integer arguments reach the validator
	// without float64 rounding.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "invalid params: %v", err)
	}
	return nil
}

// rpcError maps session errors to JSON-RPC errors.
func rpcError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotInitialized),
		errors.Is(err, ErrSessionClosed),
		errors.Is(err, ErrAlreadyInitialized):
		return jsonrpc.Errorf(CodeLifecycle, "%v", err)
	case errors.Is(err, ErrRateLimited):
		return jsonrpc.Errorf(jsonrpc.CodeServerError, "%v", err)
	}
	return err
}
