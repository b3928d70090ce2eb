package handlers

import (
	"net/http"
	"time"

	"github.com/bobmcallan/mcp-bridge/internal/common"
	"github.com/bobmcallan/mcp-bridge/internal/mcp"
	"github.com/bobmcallan/mcp-bridge/internal/ollama"
)

// HealthHandler reports process and Ollama reachability status.
type HealthHandler struct {
	logger   *common.Logger
	client   *ollama.Client
	registry *mcp.Registry
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler. probeTimeout bounds the
// Ollama reachability check; zero means 3s.
func NewHealthHandler(logger *common.Logger, client *ollama.Client, registry *mcp.Registry, probeTimeout time.Duration) *HealthHandler {
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	return &HealthHandler{logger: logger, client: client, registry: registry, timeout: probeTimeout}
}

// ServeHTTP handles GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	healthy := h.client.Healthy(r.Context(), h.timeout)

	status := "healthy"
	ollamaStatus := "running"
	statusCode := http.StatusOK
	if !healthy {
		status = "degraded"
		ollamaStatus = "not accessible"
		statusCode = http.StatusServiceUnavailable
	}

	WriteJSON(w, statusCode, map[string]interface{}{
		"status": status,
		"ollama": ollamaStatus,
		"tools":  h.registry.Catalog().Len(),
	})
}
