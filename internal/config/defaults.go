package config

import "github.com/bobmcallan/mcp-bridge/internal/common"

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8000,
			Host: "0.0.0.0",
		},
		Ollama: OllamaConfig{
			URL:                  "http://localhost:11434",
			HealthTimeoutSeconds: 3,
		},
		MCP: MCPConfig{
			ServersFile:           "mcp-config.json",
			CollisionPolicy:       "first-wins",
			MaxTurns:              10,
			InvokeTimeoutSeconds:  30,
			ConnectTimeoutSeconds: 15,
		},
		Logging: common.LoggingConfig{
			Level:   "info",
			Outputs: []string{"console", "file"},
		},
	}
}
