package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mcpdeck/internal/logging"
)

// Client handles JSON-RPC communication with a single gateway or connection.
type Client struct {
	transport   Transport
	serverInfo  *ServerInfo
	initialized bool
	mu          sync.RWMutex

	// Request tracking
	nextID    int64
	pending   map[int64]chan *JSONRPCMessage
	pendingMu sync.Mutex

	gatewayName string
	timeout     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a client for the given gateway over an HTTP transport.
func NewClient(cfg *GatewayConfig) (*Client, error) {
	transport, err := NewHTTPTransport(cfg.URL, cfg.Headers, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	return NewClientWithTransport(cfg.Name, cfg.Timeout, transport), nil
}

// NewClientWithTransport creates a client over an existing transport.
func NewClientWithTransport(name string, timeout time.Duration, transport Transport) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		transport:   transport,
		gatewayName: name,
		timeout:     timeout,
		pending:     make(map[int64]chan *JSONRPCMessage),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	go c.receiveLoop()

	return c
}

// receiveLoop reads messages from the transport and routes them.
func (c *Client) receiveLoop() {
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		msg, err := c.transport.Receive()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			logging.Warn("gateway receive error", "gateway", c.gatewayName, "error", err)
			return
		}

		c.routeMessage(msg)
	}
}

// routeMessage delivers a response to the pending request that issued it.
func (c *Client) routeMessage(msg *JSONRPCMessage) {
	if !msg.IsResponse() {
		if msg.IsNotification() {
			logging.Debug("gateway notification", "method", msg.Method)
		}
		return
	}

	id, ok := msg.ID.(float64) // JSON numbers decode as float64
	if !ok {
		logging.Warn("gateway response with invalid ID type", "id", msg.ID)
		return
	}

	c.pendingMu.Lock()
	ch, exists := c.pending[int64(id)]
	if exists {
		delete(c.pending, int64(id))
	}
	c.pendingMu.Unlock()

	if !exists {
		logging.Warn("gateway response for unknown request", "id", id)
		return
	}

	select {
	case ch <- msg:
	default:
	}
}

// request sends a request and waits for its response.
func (c *Client) request(ctx context.Context, method string, params any) (*JSONRPCMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)

	respCh := make(chan *JSONRPCMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	msg := &JSONRPCMessage{
		ID:     id,
		Method: method,
		Params: params,
	}

	if err := c.transport.Send(msg); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	timeout := c.timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("request timeout after %v", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// notify sends a notification (no response expected).
func (c *Client) notify(method string, params any) error {
	return c.transport.Send(&JSONRPCMessage{
		Method: method,
		Params: params,
	})
}

// decodeResult re-marshals a generic result into the expected shape.
func decodeResult(result any, out any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

// Initialize performs the MCP handshake with the gateway.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	params := &InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo: &ClientInfo{
			Name:    "mcpdeck",
			Version: "0.1.0",
		},
		Capabilities: map[string]any{},
	}

	resp, err := c.request(ctx, MethodInitialize, params)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}

	var result InitializeResult
	if err := decodeResult(resp.Result, &result); err != nil {
		return err
	}
	c.serverInfo = result.ServerInfo
	if c.serverInfo == nil {
		// Gateways may omit serverInfo from the handshake result.
		c.serverInfo = &ServerInfo{}
	}

	if err := c.notify(MethodInitialized, nil); err != nil {
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}

	c.initialized = true

	logging.Info("gateway initialized",
		"gateway", c.gatewayName,
		"server", c.serverInfo.Name,
		"version", c.serverInfo.Version)

	return nil
}

func (c *Client) requireInitialized() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return fmt.Errorf("client not initialized")
	}
	return nil
}

// ListTools retrieves the tool surface exposed by the gateway.
func (c *Client) ListTools(ctx context.Context) ([]*ToolInfo, error) {
	if err := c.requireInitialized(); err != nil {
		return nil, err
	}

	resp, err := c.request(ctx, MethodToolsList, nil)
	if err != nil {
		return nil, fmt.Errorf("tools/list failed: %w", err)
	}

	var result ListToolsResult
	if err := decodeResult(resp.Result, &result); err != nil {
		return nil, err
	}

	logging.Debug("gateway tools listed", "gateway", c.gatewayName, "count", len(result.Tools))

	return result.Tools, nil
}

// CallTool invokes a named tool on the gateway.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	if err := c.requireInitialized(); err != nil {
		return nil, err
	}

	params := &CallToolParams{
		Name:      name,
		Arguments: args,
	}

	resp, err := c.request(ctx, MethodToolsCall, params)
	if err != nil {
		return nil, fmt.Errorf("tools/call failed: %w", err)
	}

	var result CallToolResult
	if err := decodeResult(resp.Result, &result); err != nil {
		return nil, err
	}

	logging.Debug("gateway tool called",
		"gateway", c.gatewayName,
		"tool", name,
		"is_error", result.IsError)

	return &result, nil
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.requireInitialized(); err != nil {
		return err
	}
	_, err := c.request(ctx, MethodPing, nil)
	return err
}

// ServerInfo returns information about the connected gateway.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// GatewayName returns the configured gateway name.
func (c *Client) GatewayName() string {
	return c.gatewayName
}

// Close shuts the client down and releases the transport.
func (c *Client) Close() error {
	c.cancel()

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		logging.Warn("gateway client receive loop did not stop in time")
	}

	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}

	logging.Debug("gateway client closed", "gateway", c.gatewayName)
	return nil
}
