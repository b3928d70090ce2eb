// Package app wires configuration, logging, the tool-server registry, the
// Ollama client, and the HTTP handlers into one application object.
package app

import (
	"context"
	"os"
	"time"

	"github.com/bobmcallan/mcp-bridge/internal/bridge"
	"github.com/bobmcallan/mcp-bridge/internal/common"
	"github.com/bobmcallan/mcp-bridge/internal/config"
	"github.com/bobmcallan/mcp-bridge/internal/handlers"
	"github.com/bobmcallan/mcp-bridge/internal/mcp"
	"github.com/bobmcallan/mcp-bridge/internal/ollama"
)

// App holds all application components and dependencies.
type App struct {
	Config *config.Config
	Logger *common.Logger

	Registry     *mcp.Registry
	Ollama       *ollama.Client
	Orchestrator *bridge.Orchestrator

	// HTTP handlers
	ChatHandler    *handlers.ChatHandler
	HealthHandler  *handlers.HealthHandler
	VersionHandler *handlers.VersionHandler
	ProxyHandler   *handlers.ProxyHandler
}

// New initializes the application: connects to the configured tool servers
// (tolerating individual failures) and builds the handler set. A missing
// servers file is not fatal; the bridge starts with an empty catalog and
// behaves as a pure proxy.
func New(ctx context.Context, cfg *config.Config, logger *common.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	a.Ollama = ollama.NewClient(cfg.Ollama.URL, logger)

	a.Registry = mcp.NewRegistry(mcp.RegistryOptions{
		CollisionPolicy: cfg.MCP.CollisionPolicy,
		ConnectTimeout:  time.Duration(cfg.MCP.ConnectTimeoutSeconds) * time.Second,
	}, logger)

	specs, err := loadSpecs(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Registry.LoadAll(ctx, specs); err != nil {
		return nil, err
	}

	a.Orchestrator = bridge.New(a.Ollama, bridge.Options{
		MaxTurns:      cfg.MCP.MaxTurns,
		InvokeTimeout: time.Duration(cfg.MCP.InvokeTimeoutSeconds) * time.Second,
	}, logger)

	a.initHandlers()

	logger.Info().
		Int("tools", a.Registry.Catalog().Len()).
		Str("ollama_url", cfg.Ollama.URL).
		Msg("application initialization complete")

	return a, nil
}

// loadSpecs reads the tool-server configuration file. Absence of the file
// degrades to zero servers rather than failing startup.
func loadSpecs(cfg *config.Config, logger *common.Logger) ([]mcp.ServerSpec, error) {
	path := cfg.MCP.ServersFile
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warn().Str("path", path).Msg("servers file not found, starting without tool servers")
		return nil, nil
	}

	specs, err := mcp.LoadServerSpecs(path)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("servers", len(specs)).Str("path", path).Msg("tool server specs loaded")
	return specs, nil
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() {
	probeTimeout := time.Duration(a.Config.Ollama.HealthTimeoutSeconds) * time.Second

	a.ChatHandler = handlers.NewChatHandler(a.Logger, a.Orchestrator, a.Registry)
	a.HealthHandler = handlers.NewHealthHandler(a.Logger, a.Ollama, a.Registry, probeTimeout)
	a.VersionHandler = handlers.NewVersionHandler(a.Logger)
	a.ProxyHandler = handlers.NewProxyHandler(a.Logger, a.Config.Ollama.URL)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Close shuts down all tool-server connections.
func (a *App) Close() error {
	if a.Registry != nil {
		a.Registry.ShutdownAll()
	}
	return nil
}
