package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bobmcallan/mcp-bridge/internal/common"
	"github.com/bobmcallan/mcp-bridge/internal/ollama"
)

func TestHealthHandlerHealthy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[]}`)
	}))
	defer upstream.Close()

	logger := common.NewSilentLogger()
	client := ollama.NewClient(upstream.URL, logger)
	registry := newTestRegistry(t, &echoToolServer{name: "kb", tools: []string{"lookup", "store"}})
	h := NewHealthHandler(logger, client, registry, time.Second)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body struct {
		Status string `json:"status"`
		Ollama string `json:"ollama"`
		Tools  int    `json:"tools"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body.Status != "healthy" || body.Ollama != "running" {
		t.Errorf("Unexpected status %+v", body)
	}
	if body.Tools != 2 {
		t.Errorf("Expected 2 tools, got %d", body.Tools)
	}
}

func TestHealthHandlerDegraded(t *testing.T) {
	logger := common.NewSilentLogger()
	client := ollama.NewClient("http://127.0.0.1:1", logger)
	h := NewHealthHandler(logger, client, newTestRegistry(t), time.Second)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}

	var body struct {
		Status string `json:"status"`
		Ollama string `json:"ollama"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body.Status != "degraded" || body.Ollama != "not accessible" {
		t.Errorf("Unexpected status %+v", body)
	}
}

func TestVersionHandler(t *testing.T) {
	h := NewVersionHandler(common.NewSilentLogger())

	req := httptest.NewRequest("GET", "/api/version", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["version"] == "" {
		t.Error("Expected version field")
	}
}
