package mcp

import (
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/bobmcallan/mcp-bridge/internal/common"
	"github.com/bobmcallan/mcp-bridge/internal/ollama"
)

// Collision policies for duplicate tool names across servers.
const (
	// CollisionFirstWins keeps the first-connected server's tool and drops
	// later duplicates with a warning.
	CollisionFirstWins = "first-wins"

	// CollisionPrefix renames later duplicates to <server>_<tool>.
	CollisionPrefix = "prefix"
)

// ToolDefinition is one catalog entry: the advertised tool plus a
// back-reference to the server that owns it.
type ToolDefinition struct {
	// Name is the tool name advertised to the backend. Under the prefix
	// collision policy it may differ from the name on the owning server.
	Name        string
	Description string
	Parameters  json.RawMessage

	originalName string
	owner        ToolServer
}

// ServerName returns the name of the owning tool server.
func (d *ToolDefinition) ServerName() string {
	return d.owner.Name()
}

// OriginalName returns the tool's name on the owning server.
func (d *ToolDefinition) OriginalName() string {
	return d.originalName
}

// Owner returns the owning tool server.
func (d *ToolDefinition) Owner() ToolServer {
	return d.owner
}

// Catalog is a point-in-time aggregation of every tool from every ready
// server. It is immutable after construction; a registry refresh publishes
// a new snapshot rather than mutating an existing one.
type Catalog struct {
	tools      []*ToolDefinition
	byName     map[string]*ToolDefinition
	collisions int
}

// serverTools pairs a server with the tool list it advertised.
type serverTools struct {
	server ToolServer
	tools  []mcpgo.Tool
}

// buildCatalog merges per-server tool lists into one catalog, applying the
// configured collision policy. Input order determines precedence: earlier
// servers win name collisions.
func buildCatalog(lists []serverTools, policy string, logger *common.Logger) *Catalog {
	c := &Catalog{byName: make(map[string]*ToolDefinition)}

	for _, st := range lists {
		for _, tool := range st.tools {
			if tool.Name == "" {
				logger.Warn().Str("server", st.server.Name()).Msg("skipping tool with empty name")
				continue
			}

			name := tool.Name
			if existing, dup := c.byName[name]; dup {
				c.collisions++
				switch policy {
				case CollisionPrefix:
					name = st.server.Name() + "_" + tool.Name
					if _, dup := c.byName[name]; dup {
						logger.Warn().Str("server", st.server.Name()).Str("tool", tool.Name).Msg("skipping tool, prefixed name also collides")
						continue
					}
					logger.Warn().
						Str("server", st.server.Name()).
						Str("tool", tool.Name).
						Str("advertised_as", name).
						Msg("duplicate tool name, registering under prefixed name")
				default: // first-wins
					logger.Warn().
						Str("tool", tool.Name).
						Str("kept", existing.ServerName()).
						Str("dropped", st.server.Name()).
						Msg("duplicate tool name, first-connected server wins")
					continue
				}
			}

			def := &ToolDefinition{
				Name:         name,
				Description:  tool.Description,
				Parameters:   marshalSchema(tool.InputSchema),
				originalName: tool.Name,
				owner:        st.server,
			}
			c.byName[name] = def
			c.tools = append(c.tools, def)
		}
	}

	return c
}

// Resolve returns the definition for the given advertised tool name.
func (c *Catalog) Resolve(name string) (*ToolDefinition, error) {
	def, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return def, nil
}

// ToolDescriptors returns the catalog formatted as Ollama's tools array,
// in catalog order. The result is rebuilt on each call so callers may
// mutate it freely; the catalog itself never changes.
func (c *Catalog) ToolDescriptors() []ollama.Tool {
	if len(c.tools) == 0 {
		return nil
	}
	descriptors := make([]ollama.Tool, len(c.tools))
	for i, def := range c.tools {
		descriptors[i] = ollama.Tool{
			Type: "function",
			Function: ollama.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}
	return descriptors
}

// Len returns the number of tools in the catalog.
func (c *Catalog) Len() int {
	return len(c.tools)
}

// Collisions returns how many duplicate tool names were encountered while
// building this snapshot.
func (c *Catalog) Collisions() int {
	return c.collisions
}

// Names returns the advertised tool names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tools))
	for i, def := range c.tools {
		names[i] = def.Name
	}
	return names
}

// marshalSchema converts an MCP input schema to the raw JSON handed to the
// backend. A schema that fails to marshal degrades to an empty object schema.
func marshalSchema(schema mcpgo.ToolInputSchema) json.RawMessage {
	data, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}
