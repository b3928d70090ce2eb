package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolServer is the capability a catalog entry dispatches to: list the
// advertised tools and invoke one by name. Connection is the production
// implementation; tests substitute fakes.
type ToolServer interface {
	Name() string
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	Invoke(ctx context.Context, toolName string, arguments map[string]any, timeout time.Duration) (string, error)
	Close() error
}

var _ ToolServer = (*Connection)(nil)
