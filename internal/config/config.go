package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/mcp-bridge/internal/common"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig         `toml:"server"`
	Ollama  OllamaConfig         `toml:"ollama"`
	MCP     MCPConfig            `toml:"mcp"`
	Logging common.LoggingConfig `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// OllamaConfig contains settings for the upstream Ollama server.
type OllamaConfig struct {
	URL                  string `toml:"url"`
	HealthTimeoutSeconds int    `toml:"health_timeout_seconds"`
}

// MCPConfig contains tool-server settings.
type MCPConfig struct {
	// ServersFile is the path to the JSON file describing tool servers
	// ({"mcpServers": {name: {command, args, env}}}).
	ServersFile string `toml:"servers_file"`

	// CollisionPolicy controls how duplicate tool names across servers are
	// handled: "first-wins" (default) keeps the first-connected server's tool,
	// "prefix" namespaces colliding tools as <server>_<tool>.
	CollisionPolicy string `toml:"collision_policy"`

	// MaxTurns bounds the tool-calling loop per chat request.
	MaxTurns int `toml:"max_turns"`

	InvokeTimeoutSeconds  int `toml:"invoke_timeout_seconds"`
	ConnectTimeoutSeconds int `toml:"connect_timeout_seconds"`
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies BRIDGE_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("BRIDGE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("BRIDGE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if url := os.Getenv("BRIDGE_OLLAMA_URL"); url != "" {
		config.Ollama.URL = url
	}
	if file := os.Getenv("BRIDGE_MCP_SERVERS_FILE"); file != "" {
		config.MCP.ServersFile = file
	}
	if level := os.Getenv("BRIDGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host, ollamaURL, serversFile string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if ollamaURL != "" {
		config.Ollama.URL = ollamaURL
	}
	if serversFile != "" {
		config.MCP.ServersFile = serversFile
	}
}

// Validate checks mandatory configuration and returns a list of issues.
// An empty slice means the configuration is usable.
func (c *Config) Validate() []string {
	var issues []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
	}
	if c.Ollama.URL == "" {
		issues = append(issues, "ollama.url must be set")
	}
	switch c.MCP.CollisionPolicy {
	case "", "first-wins", "prefix":
	default:
		issues = append(issues, fmt.Sprintf("mcp.collision_policy must be \"first-wins\" or \"prefix\" (got %q)", c.MCP.CollisionPolicy))
	}
	if c.MCP.MaxTurns < 0 {
		issues = append(issues, fmt.Sprintf("mcp.max_turns must not be negative (got %d)", c.MCP.MaxTurns))
	}
	return issues
}
