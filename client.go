package mcpcore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tmc/mcpcore/internal/jsonrpc"
)

// RPCError is an error response from the server.
type RPCError = jsonrpc.Error

// ErrClientClosed is returned for calls on a closed client or after the
// connection fails.
var ErrClientClosed = errors.New("client closed")

// Client represents an MCP client.
// Calls may be made concurrently; responses are matched by request ID.
type Client struct {
	conn io.ReadWriteCloser

	wmu sync.Mutex // serializes writes

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan *jsonrpc.Response
	err     error
	done    chan struct{}
}

// NewClient creates a new MCP client and starts reading responses from conn.
func NewClient(conn io.ReadWriteCloser) *Client {
	c := &Client{
		conn:    conn,
		pending: make(map[int64]chan *jsonrpc.Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	br := bufio.NewReader(c.conn)
	var err error
	for {
		var line []byte
		line, err = br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			c.deliver(line)
		}
		if err != nil {
			break
		}
	}
	if errors.Is(err, io.EOF) {
		err = ErrClientClosed
	}
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	close(c.done)
}

func (c *Client) deliver(line []byte) {
	var resp jsonrpc.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return
	}
	var id int64
	if err := json.Unmarshal(resp.ID, &id); err != nil {
		// Server notifications and uncorrelated errors.
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		ch <- &resp
	}
}

func (c *Client) write(msg *jsonrpc.Request) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return jsonrpc.WriteMessage(c.conn, msg)
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return data, nil
}

// Call sends a request and decodes the result into result, which may be
// nil. A server error response is returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *jsonrpc.Response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	idJSON, _ := json.Marshal(id)
	if err := c.write(&jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: idJSON, Method: method, Params: raw}); err != nil {
		c.forget(id)
		return fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			c.mu.Lock()
			err := c.err
			c.mu.Unlock()
			return err
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Notify sends a notification. No response is expected.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	return c.write(&jsonrpc.Request{JSONRPC: jsonrpc.Version, Method: method, Params: raw})
}

// Initialize sends the initialize request followed by the initialized
// notification.
func (c *Client) Initialize(ctx context.Context, clientInfo Implementation) (*InitializeResult, error) {
	args := &InitializeParams{
		ProtocolVersion: LatestProtocolVersion,
		ClientInfo:      clientInfo,
	}
	var reply InitializeResult
	if err := c.Call(ctx, MethodInitialize, args, &reply); err != nil {
		return nil, err
	}
	if err := c.Notify(ctx, MethodInitialized, nil); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	return c.Call(ctx, MethodPing, nil, nil)
}

// ListTools requests available tools.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var reply ListToolsResult
	if err := c.Call(ctx, MethodListTools, &ListToolsParams{}, &reply); err != nil {
		return nil, err
	}
	return reply.Tools, nil
}

// CallTool executes a tool. args is marshaled as the arguments object.
func (c *Client) CallTool(ctx context.Context, name string, args any) (*CallResult, error) {
	params := struct {
		Name      string `json:"name"`
		Arguments any    `json:"arguments,omitempty"`
	}{name, args}
	var reply CallResult
	if err := c.Call(ctx, MethodCallTool, &params, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// ListResources requests available resources.
func (c *Client) ListResources(ctx context.Context) ([]ResourceInfo, error) {
	var reply ListResourcesResult
	if err := c.Call(ctx, MethodListResources, &ListResourcesParams{}, &reply); err != nil {
		return nil, err
	}
	return reply.Resources, nil
}

// ReadResource reads the resource at uri.
func (c *Client) ReadResource(ctx context.Context, uri string) (*ReadResult, error) {
	var reply ReadResult
	if err := c.Call(ctx, MethodReadResource, &ReadResourceParams{URI: uri}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Close closes the connection and waits for the reader to stop.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = ErrClientClosed
	}
	c.mu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}
