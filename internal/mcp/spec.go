package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ServerSpec describes how to launch one tool server. Immutable once loaded.
type ServerSpec struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// serversFile is the on-disk shape of the tool-server configuration:
// {"mcpServers": {name: {command, args, env}}}.
type serversFile struct {
	MCPServers map[string]serverEntry `json:"mcpServers"`
}

type serverEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// LoadServerSpecs reads tool-server specs from a JSON configuration file.
// Specs are returned sorted by server name so startup and catalog order
// are deterministic regardless of map iteration.
func LoadServerSpecs(path string) ([]ServerSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read servers file %s: %w", path, err)
	}

	var file serversFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse servers file %s: %w", path, err)
	}

	specs := make([]ServerSpec, 0, len(file.MCPServers))
	for name, entry := range file.MCPServers {
		if name == "" {
			return nil, fmt.Errorf("servers file %s contains a server with an empty name", path)
		}
		if entry.Command == "" {
			return nil, fmt.Errorf("server %q has no command", name)
		}
		specs = append(specs, ServerSpec{
			Name:    name,
			Command: entry.Command,
			Args:    entry.Args,
			Env:     entry.Env,
		})
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}
