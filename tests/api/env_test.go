package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bobmcallan/mcp-bridge/internal/app"
	"github.com/bobmcallan/mcp-bridge/internal/common"
	"github.com/bobmcallan/mcp-bridge/internal/config"
	"github.com/bobmcallan/mcp-bridge/internal/server"
)

// BridgeEnv provides a real Ollama container for integration tests. The
// bridge's Go code is exercised directly in the test process, pointed at
// the container; no bridge container is built.
type BridgeEnv struct {
	t      *testing.T
	ollama testcontainers.Container
	bridge *httptest.Server
	app    *app.App
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBridgeEnv starts an Ollama container and wires an in-process bridge
// against it.
func NewBridgeEnv(t *testing.T) *BridgeEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	ollamaContainer, err := testcontainers.Run(ctx, "ollama/ollama:latest",
		testcontainers.WithExposedPorts("11434/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/api/tags").WithPort("11434/tcp").WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		cancel()
		t.Fatalf("failed to start ollama: %v", err)
	}

	mappedPort, err := ollamaContainer.MappedPort(ctx, "11434/tcp")
	if err != nil {
		ollamaContainer.Terminate(ctx)
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := ollamaContainer.Host(ctx)
	if err != nil {
		ollamaContainer.Terminate(ctx)
		cancel()
		t.Fatalf("failed to get host: %v", err)
	}

	cfg := config.NewDefaultConfig()
	cfg.Ollama.URL = fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
	cfg.MCP.ServersFile = ""

	application, err := app.New(ctx, cfg, common.NewSilentLogger())
	if err != nil {
		ollamaContainer.Terminate(ctx)
		cancel()
		t.Fatalf("failed to initialize bridge: %v", err)
	}

	bridge := httptest.NewServer(server.New(application).Handler())
	t.Logf("Bridge environment ready: %s -> %s", bridge.URL, cfg.Ollama.URL)

	return &BridgeEnv{
		t:      t,
		ollama: ollamaContainer,
		bridge: bridge,
		app:    application,
		ctx:    ctx,
		cancel: cancel,
	}
}

// BridgeURL returns the base URL of the in-process bridge.
func (e *BridgeEnv) BridgeURL() string {
	return e.bridge.URL
}

// Cleanup tears down the bridge and the container.
func (e *BridgeEnv) Cleanup() {
	if e == nil {
		return
	}

	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cleanupCancel()

	if e.bridge != nil {
		e.bridge.Close()
	}
	if e.app != nil {
		e.app.Close()
	}
	if e.ollama != nil {
		e.ollama.Terminate(cleanupCtx)
	}
	if e.cancel != nil {
		e.cancel()
	}
}

// HTTPGet sends a GET request to the bridge.
func (e *BridgeEnv) HTTPGet(path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(e.ctx, http.MethodGet, e.bridge.URL+path, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}

// HTTPPost sends a POST request with a JSON body to the bridge.
func (e *BridgeEnv) HTTPPost(path string, body interface{}) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(e.ctx, http.MethodPost, e.bridge.URL+path, strings.NewReader(string(bodyBytes)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return http.DefaultClient.Do(req)
}

// ReadJSON decodes a response body into out.
func ReadJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("failed to parse response %q: %v", data, err)
	}
}
