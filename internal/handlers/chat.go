package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bobmcallan/mcp-bridge/internal/bridge"
	"github.com/bobmcallan/mcp-bridge/internal/common"
	"github.com/bobmcallan/mcp-bridge/internal/mcp"
	"github.com/bobmcallan/mcp-bridge/internal/ollama"
)

// ChatHandler handles POST /api/chat: an Ollama-compatible chat endpoint
// with transparent tool injection. Each request runs against a single
// catalog snapshot taken when the request arrives.
type ChatHandler struct {
	logger   *common.Logger
	orch     *bridge.Orchestrator
	registry *mcp.Registry
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(logger *common.Logger, orch *bridge.Orchestrator, registry *mcp.Registry) *ChatHandler {
	return &ChatHandler{logger: logger, orch: orch, registry: registry}
}

// ServeHTTP handles POST /api/chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req ollama.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Model == "" {
		WriteError(w, http.StatusBadRequest, "model is required")
		return
	}

	catalog := h.registry.Catalog()

	if req.Streaming() {
		h.serveStreaming(w, r, &req, catalog)
		return
	}

	resp, err := h.orch.Complete(r.Context(), &req, catalog)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Debug().Str("model", req.Model).Msg("chat request cancelled by client")
			return
		}
		h.logger.Error().Str("model", req.Model).Str("error", err.Error()).Msg("chat request failed")
		WriteError(w, statusForError(err), err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// serveStreaming relays the orchestrator's chunk stream as NDJSON. A
// failure mid-stream emits a terminal error record rather than silently
// truncating the stream.
func (h *ChatHandler) serveStreaming(w http.ResponseWriter, r *http.Request, req *ollama.ChatRequest, catalog *mcp.Catalog) {
	w.Header().Set("Content-Type", "application/x-ndjson")

	sink := newNDJSONSink(w)
	err := h.orch.Stream(r.Context(), req, catalog, sink)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		h.logger.Debug().Str("model", req.Model).Msg("chat stream cancelled by client")
		return
	}

	h.logger.Error().Str("model", req.Model).Str("error", err.Error()).Msg("chat stream failed")
	sink.Error(errorCode(err), err.Error())
}

// statusForError maps orchestrator failures to HTTP status codes for
// non-streaming responses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, bridge.ErrToolLoopExceeded):
		return http.StatusBadGateway
	case errors.Is(err, mcp.ErrConnectionLost):
		return http.StatusBadGateway
	case errors.Is(err, ollama.ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

// errorCode maps failures to the stable codes carried by terminal stream
// error records.
func errorCode(err error) string {
	switch {
	case errors.Is(err, bridge.ErrToolLoopExceeded):
		return "tool_loop_exceeded"
	case errors.Is(err, mcp.ErrConnectionLost):
		return "connection_lost"
	case errors.Is(err, ollama.ErrProtocol):
		return "protocol_error"
	default:
		return "upstream_error"
	}
}

// ndjsonSink writes chunks to the client as line-delimited JSON, flushing
// after every record to preserve incremental delivery.
type ndjsonSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	enc     *json.Encoder
}

func newNDJSONSink(w http.ResponseWriter) *ndjsonSink {
	flusher, _ := w.(http.Flusher)
	return &ndjsonSink{w: w, flusher: flusher, enc: json.NewEncoder(w)}
}

// Chunk implements bridge.Sink.
func (s *ndjsonSink) Chunk(chunk *ollama.ChatChunk) error {
	if err := s.enc.Encode(chunk); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Error emits a terminal error record and ends the stream.
func (s *ndjsonSink) Error(code, message string) {
	record := struct {
		Error     string `json:"error"`
		ErrorCode string `json:"error_code"`
		Done      bool   `json:"done"`
	}{Error: message, ErrorCode: code, Done: true}

	if err := s.enc.Encode(record); err != nil {
		return
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
