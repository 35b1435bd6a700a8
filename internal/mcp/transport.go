package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"mcpdeck/internal/logging"
)

// Transport defines the interface for gateway transport implementations.
type Transport interface {
	// Send sends a JSON-RPC message to the server.
	Send(msg *JSONRPCMessage) error

	// Receive receives a JSON-RPC message from the server.
	// Returns io.EOF when the transport is closed.
	Receive() (*JSONRPCMessage, error)

	// Close closes the transport connection.
	Close() error
}

// HTTPTransport communicates with a gateway via HTTP POST (Streamable HTTP).
// Responses arrive in the POST body and are queued for Receive.
type HTTPTransport struct {
	url     string
	headers map[string]string
	timeout time.Duration
	client  *http.Client

	recvChan chan *JSONRPCMessage

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHTTPTransport creates a new HTTP transport.
func NewHTTPTransport(url string, headers map[string]string, timeout time.Duration) (*HTTPTransport, error) {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &HTTPTransport{
		url:      url,
		headers:  headers,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		recvChan: make(chan *JSONRPCMessage, 10),
		ctx:      ctx,
		cancel:   cancel,
	}

	logging.Debug("gateway HTTP transport created", "url", url)

	return t, nil
}

// Send sends a JSON-RPC message to the gateway via HTTP POST.
func (t *HTTPTransport) Send(msg *JSONRPCMessage) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}
	t.mu.Unlock()

	msg.JSONRPC = "2.0"

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if len(body) > 0 {
		var response JSONRPCMessage
		if err := json.Unmarshal(body, &response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		select {
		case t.recvChan <- &response:
		case <-t.ctx.Done():
			return t.ctx.Err()
		}
	}

	logging.Debug("gateway message sent", "method", msg.Method, "id", msg.ID)

	return nil
}

// Receive receives a JSON-RPC message from the gateway.
func (t *HTTPTransport) Receive() (*JSONRPCMessage, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, io.EOF
	}
	t.mu.Unlock()

	select {
	case msg := <-t.recvChan:
		return msg, nil
	case <-t.ctx.Done():
		return nil, io.EOF
	}
}

// Close closes the HTTP transport.
func (t *HTTPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()

	logging.Debug("gateway HTTP transport closed")
	return nil
}
