package mcp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/mcp-bridge/internal/common"
)

// Registry owns the set of tool-server connections for the process lifetime
// and publishes a merged Catalog. Connection-set mutations (LoadAll,
// RefreshCatalog, ShutdownAll) publish a fresh catalog snapshot atomically;
// readers always see a complete, consistent snapshot.
type Registry struct {
	logger         *common.Logger
	policy         string
	connectTimeout time.Duration

	// connect is the dial function; overridable in tests.
	connect func(ctx context.Context, spec ServerSpec) (ToolServer, error)

	mu      sync.Mutex
	servers []ToolServer
	catalog atomic.Pointer[Catalog]
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// CollisionPolicy is CollisionFirstWins (default) or CollisionPrefix.
	CollisionPolicy string

	// ConnectTimeout bounds each server's connect+handshake. Zero means 15s.
	ConnectTimeout time.Duration

	// Dial overrides how a spec becomes a ToolServer. Nil means stdio
	// subprocess; tests substitute in-memory servers.
	Dial func(ctx context.Context, spec ServerSpec) (ToolServer, error)
}

// NewRegistry creates a registry with no connections and an empty catalog.
func NewRegistry(opts RegistryOptions, logger *common.Logger) *Registry {
	policy := opts.CollisionPolicy
	if policy == "" {
		policy = CollisionFirstWins
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}

	r := &Registry{
		logger:         logger,
		policy:         policy,
		connectTimeout: connectTimeout,
	}
	r.connect = opts.Dial
	if r.connect == nil {
		r.connect = r.dialStdio
	}
	r.catalog.Store(&Catalog{byName: map[string]*ToolDefinition{}})
	return r
}

// dialStdio launches and initializes a stdio connection for the spec.
func (r *Registry) dialStdio(ctx context.Context, spec ServerSpec) (ToolServer, error) {
	conn := NewConnection(spec, r.logger)
	if err := conn.Connect(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// LoadAll connects to every configured server concurrently. A server that
// fails to connect is logged and excluded; startup proceeds with whatever
// connected, including none (the bridge stays useful as a pure proxy).
// Catalog precedence follows spec order, so a run with the same
// configuration resolves collisions the same way every time.
func (r *Registry) LoadAll(ctx context.Context, specs []ServerSpec) error {
	connected := make([]ToolServer, len(specs))

	var g errgroup.Group
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			connectCtx, cancel := context.WithTimeout(ctx, r.connectTimeout)
			defer cancel()

			server, err := r.connect(connectCtx, spec)
			if err != nil {
				r.logger.Warn().
					Str("server", spec.Name).
					Str("error", err.Error()).
					Msg("tool server excluded, connect failed")
				return nil
			}
			connected[i] = server
			return nil
		})
	}
	g.Wait()

	servers := make([]ToolServer, 0, len(specs))
	for _, s := range connected {
		if s != nil {
			servers = append(servers, s)
		}
	}

	r.mu.Lock()
	r.servers = servers
	r.mu.Unlock()

	if len(servers) == 0 && len(specs) > 0 {
		r.logger.Warn().Int("configured", len(specs)).Msg("no tool servers connected, bridge running as pure proxy")
	}

	return r.RefreshCatalog(ctx)
}

// RefreshCatalog re-queries every connected server's tool list and publishes
// a new catalog snapshot. A server whose listing fails contributes no tools
// to the new snapshot but stays connected for a later refresh.
func (r *Registry) RefreshCatalog(ctx context.Context) error {
	servers := r.Servers()

	lists := make([]serverTools, len(servers))
	var g errgroup.Group
	for i, server := range servers {
		i, server := i, server
		g.Go(func() error {
			tools, err := server.ListTools(ctx)
			if err != nil {
				r.logger.Warn().
					Str("server", server.Name()).
					Str("error", err.Error()).
					Msg("tool listing failed, server excluded from catalog")
				tools = nil
			}
			lists[i] = serverTools{server: server, tools: tools}
			return nil
		})
	}
	g.Wait()

	catalog := buildCatalog(lists, r.policy, r.logger)
	r.catalog.Store(catalog)

	r.logger.Info().
		Int("servers", len(servers)).
		Int("tools", catalog.Len()).
		Int("collisions", catalog.Collisions()).
		Msg("tool catalog published")
	return nil
}

// Catalog returns the current catalog snapshot.
func (r *Registry) Catalog() *Catalog {
	return r.catalog.Load()
}

// Servers returns a copy of the connected server list.
func (r *Registry) Servers() []ToolServer {
	r.mu.Lock()
	defer r.mu.Unlock()
	servers := make([]ToolServer, len(r.servers))
	copy(servers, r.servers)
	return servers
}

// ShutdownAll closes every connection, tolerating individual close failures.
// The published catalog is replaced with an empty snapshot.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	servers := r.servers
	r.servers = nil
	r.mu.Unlock()

	for _, server := range servers {
		if err := server.Close(); err != nil {
			r.logger.Warn().Str("server", server.Name()).Str("error", err.Error()).Msg("tool server close failed")
		}
	}
	r.catalog.Store(&Catalog{byName: map[string]*ToolDefinition{}})

	if len(servers) > 0 {
		r.logger.Info().Int("servers", len(servers)).Msg("tool servers shut down")
	}
}
