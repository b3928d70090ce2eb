package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bobmcallan/mcp-bridge/internal/common"
	"github.com/bobmcallan/mcp-bridge/internal/config"
)

// maxResponseSize caps a non-streaming response body to prevent OOM from
// unexpectedly large responses.
const maxResponseSize = 50 << 20 // 50MB

// Client talks to one Ollama server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
}

// NewClient creates a client for the given Ollama base URL.
func NewClient(baseURL string, logger *common.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 300 * time.Second, // local inference can be slow
		},
		logger: logger,
	}
}

// BaseURL returns the configured Ollama base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat sends a non-streaming chat request and returns the complete response.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatChunk, error) {
	stream := false
	body := *req
	body.Stream = &stream

	resp, err := c.postChat(ctx, &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read ollama response: %w", err)
	}

	var chunk ChatChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("failed to parse ollama response: %w", err)
	}
	if chunk.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", chunk.Error)
	}
	return &chunk, nil
}

// ChatStream sends a streaming chat request and returns the record stream.
// The caller owns the stream and must Close it.
func (c *Client) ChatStream(ctx context.Context, req *ChatRequest) (*Stream, error) {
	stream := true
	body := *req
	body.Stream = &stream

	resp, err := c.postChat(ctx, &body)
	if err != nil {
		return nil, err
	}
	return newStream(resp.Body, c.logger), nil
}

// postChat performs the POST /api/chat round trip and validates the status.
func (c *Client) postChat(ctx context.Context, req *ChatRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", config.GetUserAgent())

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Str("url", c.baseURL).Str("error", err.Error()).Msg("ollama request failed")
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Bool("stream", req.Streaming()).
		Msg("ollama chat request")

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		return nil, parseErrorResponse(resp.StatusCode, data)
	}
	return resp, nil
}

// Healthy reports whether the Ollama server is reachable, probed via
// GET /api/tags with the given timeout.
func (c *Client) Healthy(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Str("url", c.baseURL).Str("error", err.Error()).Msg("ollama health probe failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	return resp.StatusCode == http.StatusOK
}

// parseErrorResponse extracts a meaningful error message from an HTTP error response.
func parseErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("ollama returned %d: %s", statusCode, errResp.Error)
	}
	return fmt.Errorf("ollama returned %d: %s", statusCode, string(body))
}
