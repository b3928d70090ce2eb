package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/bobmcallan/mcp-bridge/internal/common"
)

// fakeServer is an in-memory ToolServer for catalog and registry tests.
type fakeServer struct {
	name     string
	tools    []mcpgo.Tool
	listErr  error
	invoke   func(toolName string, arguments map[string]any) (string, error)
	closeErr error

	mu      sync.Mutex
	invoked []string
	closed  bool
}

func (f *fakeServer) Name() string { return f.name }

func (f *fakeServer) ListTools(ctx context.Context) ([]mcpgo.Tool, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeServer) Invoke(ctx context.Context, toolName string, arguments map[string]any, timeout time.Duration) (string, error) {
	f.mu.Lock()
	f.invoked = append(f.invoked, toolName)
	f.mu.Unlock()
	if f.invoke != nil {
		return f.invoke(toolName, arguments)
	}
	return fmt.Sprintf("%s result from %s", toolName, f.name), nil
}

func (f *fakeServer) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return f.closeErr
}

func makeTool(name, description string) mcpgo.Tool {
	return mcpgo.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcpgo.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{"type": "string"},
			},
		},
	}
}

func TestBuildCatalogMergesServers(t *testing.T) {
	logger := common.NewSilentLogger()
	alpha := &fakeServer{name: "alpha", tools: []mcpgo.Tool{makeTool("search", "searches"), makeTool("fetch", "fetches")}}
	beta := &fakeServer{name: "beta", tools: []mcpgo.Tool{makeTool("convert", "converts")}}

	catalog := buildCatalog([]serverTools{
		{server: alpha, tools: alpha.tools},
		{server: beta, tools: beta.tools},
	}, CollisionFirstWins, logger)

	if catalog.Len() != 3 {
		t.Fatalf("Expected 3 tools, got %d", catalog.Len())
	}

	def, err := catalog.Resolve("convert")
	if err != nil {
		t.Fatalf("Resolve(convert) error: %v", err)
	}
	if def.ServerName() != "beta" {
		t.Errorf("Expected convert owned by beta, got %q", def.ServerName())
	}
	if def.OriginalName() != "convert" {
		t.Errorf("Expected original name convert, got %q", def.OriginalName())
	}
}

func TestBuildCatalogFirstWins(t *testing.T) {
	logger := common.NewSilentLogger()
	alpha := &fakeServer{name: "alpha", tools: []mcpgo.Tool{makeTool("search", "alpha search")}}
	beta := &fakeServer{name: "beta", tools: []mcpgo.Tool{makeTool("search", "beta search")}}

	catalog := buildCatalog([]serverTools{
		{server: alpha, tools: alpha.tools},
		{server: beta, tools: beta.tools},
	}, CollisionFirstWins, logger)

	if catalog.Len() != 1 {
		t.Fatalf("Expected 1 tool after collision, got %d", catalog.Len())
	}
	if catalog.Collisions() != 1 {
		t.Errorf("Expected 1 collision recorded, got %d", catalog.Collisions())
	}

	def, err := catalog.Resolve("search")
	if err != nil {
		t.Fatalf("Resolve(search) error: %v", err)
	}
	if def.ServerName() != "alpha" {
		t.Errorf("Expected first-connected server to win, got %q", def.ServerName())
	}
}

func TestBuildCatalogPrefixPolicy(t *testing.T) {
	logger := common.NewSilentLogger()
	alpha := &fakeServer{name: "alpha", tools: []mcpgo.Tool{makeTool("search", "alpha search")}}
	beta := &fakeServer{name: "beta", tools: []mcpgo.Tool{makeTool("search", "beta search")}}

	catalog := buildCatalog([]serverTools{
		{server: alpha, tools: alpha.tools},
		{server: beta, tools: beta.tools},
	}, CollisionPrefix, logger)

	if catalog.Len() != 2 {
		t.Fatalf("Expected 2 tools under prefix policy, got %d", catalog.Len())
	}

	def, err := catalog.Resolve("beta_search")
	if err != nil {
		t.Fatalf("Resolve(beta_search) error: %v", err)
	}
	if def.ServerName() != "beta" {
		t.Errorf("Expected beta_search owned by beta, got %q", def.ServerName())
	}
	if def.OriginalName() != "search" {
		t.Errorf("Expected original name search, got %q", def.OriginalName())
	}
}

func TestCatalogResolveUnknown(t *testing.T) {
	catalog := buildCatalog(nil, CollisionFirstWins, common.NewSilentLogger())
	_, err := catalog.Resolve("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCatalogToolDescriptors(t *testing.T) {
	logger := common.NewSilentLogger()
	alpha := &fakeServer{name: "alpha", tools: []mcpgo.Tool{makeTool("search", "searches things")}}

	catalog := buildCatalog([]serverTools{{server: alpha, tools: alpha.tools}}, CollisionFirstWins, logger)
	descriptors := catalog.ToolDescriptors()
	if len(descriptors) != 1 {
		t.Fatalf("Expected 1 descriptor, got %d", len(descriptors))
	}
	if descriptors[0].Type != "function" {
		t.Errorf("Expected type function, got %q", descriptors[0].Type)
	}
	if descriptors[0].Function.Name != "search" {
		t.Errorf("Expected function name search, got %q", descriptors[0].Function.Name)
	}
	if descriptors[0].Function.Description != "searches things" {
		t.Errorf("Unexpected description %q", descriptors[0].Function.Description)
	}
	if len(descriptors[0].Function.Parameters) == 0 {
		t.Error("Expected non-empty parameters schema")
	}

	// Each call returns a fresh slice; mutating one must not affect the next.
	descriptors[0].Function.Name = "mutated"
	again := catalog.ToolDescriptors()
	if again[0].Function.Name != "search" {
		t.Errorf("Catalog descriptor mutated through caller copy: %q", again[0].Function.Name)
	}
}

func TestCatalogToolDescriptorsEmpty(t *testing.T) {
	catalog := buildCatalog(nil, CollisionFirstWins, common.NewSilentLogger())
	if descriptors := catalog.ToolDescriptors(); descriptors != nil {
		t.Errorf("Expected nil descriptors for empty catalog, got %v", descriptors)
	}
}

func TestCatalogSkipsEmptyToolName(t *testing.T) {
	logger := common.NewSilentLogger()
	alpha := &fakeServer{name: "alpha", tools: []mcpgo.Tool{{Name: ""}, makeTool("ok", "fine")}}

	catalog := buildCatalog([]serverTools{{server: alpha, tools: alpha.tools}}, CollisionFirstWins, logger)
	if catalog.Len() != 1 {
		t.Fatalf("Expected 1 tool, got %d", catalog.Len())
	}
	if names := catalog.Names(); len(names) != 1 || names[0] != "ok" {
		t.Errorf("Unexpected names: %v", names)
	}
}
