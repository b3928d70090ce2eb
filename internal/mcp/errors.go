package mcp

import "errors"

// Error taxonomy for tool-server interactions. Per-tool-call failures
// (ErrInvocation, ErrInvocationTimeout, ErrNotFound) are folded back into the
// conversation; ErrConnectionLost is fatal to the request that hit it.
var (
	// ErrConnection indicates the transport to a tool server could not be established.
	ErrConnection = errors.New("tool server connection failed")

	// ErrHandshake indicates the transport came up but the protocol handshake failed.
	ErrHandshake = errors.New("tool server handshake failed")

	// ErrProtocol indicates a malformed message from a tool server.
	ErrProtocol = errors.New("tool server protocol error")

	// ErrInvocation indicates a server-reported tool call failure.
	ErrInvocation = errors.New("tool invocation failed")

	// ErrInvocationTimeout indicates a tool call exceeded its bounded wait.
	ErrInvocationTimeout = errors.New("tool invocation timed out")

	// ErrConnectionLost indicates a previously-ready connection dropped mid-request.
	ErrConnectionLost = errors.New("tool server connection lost")

	// ErrNotFound indicates the requested tool name is not in the catalog.
	ErrNotFound = errors.New("unknown tool")

	// ErrClosed indicates an operation on a closed connection.
	ErrClosed = errors.New("tool server connection closed")
)
