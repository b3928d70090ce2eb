package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bobmcallan/mcp-bridge/internal/common"
	"github.com/bobmcallan/mcp-bridge/internal/config"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateFailed
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection owns one live stdio connection to one tool server.
// The underlying transport is not multiplexed, so invocations are
// serialized: one in-flight call per connection.
type Connection struct {
	spec   ServerSpec
	logger *common.Logger

	mu        sync.Mutex // serializes Invoke against the stdio transport
	client    *mcpclient.Client
	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// NewConnection creates an unconnected handle for the given spec.
func NewConnection(spec ServerSpec, logger *common.Logger) *Connection {
	c := &Connection{spec: spec, logger: logger}
	c.state.Store(int32(StateConnecting))
	return c
}

// Name returns the configured server name.
func (c *Connection) Name() string {
	return c.spec.Name
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Connect launches the server process and performs the MCP initialize
// handshake. Transport failures map to ErrConnection, handshake failures
// to ErrHandshake. Both leave the connection in the failed state.
func (c *Connection) Connect(ctx context.Context) error {
	env := make([]string, 0, len(c.spec.Env))
	for k, v := range c.spec.Env {
		env = append(env, k+"="+v)
	}

	client, err := mcpclient.NewStdioMCPClient(c.spec.Command, env, c.spec.Args...)
	if err != nil {
		c.state.Store(int32(StateFailed))
		return fmt.Errorf("%w: server %q: %v", ErrConnection, c.spec.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    config.ServiceName,
		Version: config.GetVersion(),
	}
	initReq.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := client.Initialize(ctx, initReq); err != nil {
		client.Close()
		c.state.Store(int32(StateFailed))
		return fmt.Errorf("%w: server %q: %v", ErrHandshake, c.spec.Name, err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	c.state.Store(int32(StateReady))

	c.logger.Info().Str("server", c.spec.Name).Str("command", c.spec.Command).Msg("tool server connected")
	return nil
}

// ListTools returns the tool set currently advertised by the server.
func (c *Connection) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	client, err := c.readyClient()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	result, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: list tools on %q: %v", ErrProtocol, c.spec.Name, err)
	}
	return result.Tools, nil
}

// Invoke sends one tool call and waits for its result, bounded by timeout.
// Server-reported failures map to ErrInvocation, deadline expiry to
// ErrInvocationTimeout, and transport failures to ErrConnectionLost (which
// also marks the connection failed).
func (c *Connection) Invoke(ctx context.Context, toolName string, arguments map[string]any, timeout time.Duration) (string, error) {
	client, err := c.readyClient()
	if err != nil {
		return "", err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = arguments

	start := time.Now()
	c.mu.Lock()
	result, err := client.CallTool(ctx, req)
	c.mu.Unlock()
	duration := time.Since(start)

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			c.logger.Warn().Str("server", c.spec.Name).Str("tool", toolName).Int64("duration_ms", duration.Milliseconds()).Msg("tool invocation timed out")
			return "", fmt.Errorf("%w: %q on server %q after %s", ErrInvocationTimeout, toolName, c.spec.Name, timeout)
		case ctx.Err() != nil:
			// Client cancelled the request; not a server failure.
			return "", ctx.Err()
		default:
			c.state.Store(int32(StateFailed))
			c.logger.Error().Str("server", c.spec.Name).Str("tool", toolName).Str("error", err.Error()).Msg("tool server transport failed")
			return "", fmt.Errorf("%w: server %q: %v", ErrConnectionLost, c.spec.Name, err)
		}
	}

	text := contentText(result.Content)
	if result.IsError {
		return "", fmt.Errorf("%w: %q on server %q: %s", ErrInvocation, toolName, c.spec.Name, text)
	}

	c.logger.Debug().Str("server", c.spec.Name).Str("tool", toolName).Int64("duration_ms", duration.Milliseconds()).Msg("tool invoked")
	return text, nil
}

// Close tears down the transport and any child process. Idempotent.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		client := c.client
		c.client = nil
		c.mu.Unlock()

		c.state.Store(int32(StateClosed))
		if client != nil {
			c.closeErr = client.Close()
		}
	})
	return c.closeErr
}

// readyClient returns the underlying client if the connection is usable.
func (c *Connection) readyClient() (*mcpclient.Client, error) {
	switch c.State() {
	case StateClosed:
		return nil, fmt.Errorf("%w: server %q", ErrClosed, c.spec.Name)
	case StateFailed, StateConnecting:
		return nil, fmt.Errorf("%w: server %q is %s", ErrConnectionLost, c.spec.Name, c.State())
	}

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return nil, fmt.Errorf("%w: server %q", ErrClosed, c.spec.Name)
	}
	return client, nil
}

// contentText flattens MCP content blocks to a single text payload.
func contentText(content []mcp.Content) string {
	var sb strings.Builder
	for _, item := range content {
		if tc, ok := item.(mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
