package mcp

import (
	"os"
	"path/filepath"
	"testing"
)

func writeServersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write servers file: %v", err)
	}
	return path
}

func TestLoadServerSpecs(t *testing.T) {
	path := writeServersFile(t, `{
		"mcpServers": {
			"weather": {
				"command": "python",
				"args": ["-m", "weather_server"],
				"env": {"API_KEY": "secret"}
			},
			"files": {
				"command": "npx",
				"args": ["@modelcontextprotocol/server-filesystem", "/tmp"]
			}
		}
	}`)

	specs, err := LoadServerSpecs(path)
	if err != nil {
		t.Fatalf("LoadServerSpecs() error: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("Expected 2 specs, got %d", len(specs))
	}

	// Sorted by name for deterministic startup order.
	if specs[0].Name != "files" || specs[1].Name != "weather" {
		t.Errorf("Expected specs sorted by name, got %q, %q", specs[0].Name, specs[1].Name)
	}
	if specs[1].Command != "python" {
		t.Errorf("Expected command python, got %q", specs[1].Command)
	}
	if len(specs[1].Args) != 2 || specs[1].Args[0] != "-m" {
		t.Errorf("Unexpected args: %v", specs[1].Args)
	}
	if specs[1].Env["API_KEY"] != "secret" {
		t.Errorf("Expected env API_KEY=secret, got %v", specs[1].Env)
	}
}

func TestLoadServerSpecsMissingFile(t *testing.T) {
	_, err := LoadServerSpecs("/nonexistent/servers.json")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadServerSpecsInvalidJSON(t *testing.T) {
	path := writeServersFile(t, `{not json`)
	if _, err := LoadServerSpecs(path); err == nil {
		t.Fatal("Expected error for invalid JSON")
	}
}

func TestLoadServerSpecsMissingCommand(t *testing.T) {
	path := writeServersFile(t, `{"mcpServers": {"broken": {"args": ["x"]}}}`)
	if _, err := LoadServerSpecs(path); err == nil {
		t.Fatal("Expected error for server with no command")
	}
}

func TestLoadServerSpecsEmpty(t *testing.T) {
	path := writeServersFile(t, `{"mcpServers": {}}`)
	specs, err := LoadServerSpecs(path)
	if err != nil {
		t.Fatalf("LoadServerSpecs() error: %v", err)
	}
	if len(specs) != 0 {
		t.Errorf("Expected no specs, got %d", len(specs))
	}
}
