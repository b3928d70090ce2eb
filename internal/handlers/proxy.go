package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/mcp-bridge/internal/common"
)

// hopHeaders are not forwarded to the upstream.
var hopHeaders = []string{"Connection", "Keep-Alive", "Proxy-Connection", "Transfer-Encoding", "Upgrade"}

// ProxyHandler forwards any unmatched request verbatim to Ollama, so the
// bridge is a drop-in replacement for the Ollama endpoint.
type ProxyHandler struct {
	logger     *common.Logger
	baseURL    string
	httpClient *http.Client
}

// NewProxyHandler creates a catch-all proxy targeting the given Ollama base URL.
// No client timeout is set; upstream streams (pulls, generation) run as long
// as the request context allows.
func NewProxyHandler(logger *common.Logger, baseURL string) *ProxyHandler {
	return &ProxyHandler{
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// ServeHTTP forwards the request and relays the response, flushing as the
// upstream body arrives so streamed endpoints stay incremental.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	url := h.baseURL + r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "proxy request failed: "+err.Error())
		return
	}
	copyProxyHeaders(req.Header, r.Header)

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.Error().Str("method", r.Method).Str("path", r.URL.Path).Str("error", err.Error()).Msg("proxy request failed")
		WriteError(w, http.StatusServiceUnavailable, "could not connect to ollama: "+err.Error())
		return
	}
	defer resp.Body.Close()

	h.logger.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", resp.StatusCode).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("proxied to ollama")

	for key, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	io.Copy(&flushWriter{w: w, flusher: flusher}, resp.Body)
}

// copyProxyHeaders copies request headers, dropping Host and hop-by-hop headers.
func copyProxyHeaders(dst, src http.Header) {
	for key, vals := range src {
		if strings.EqualFold(key, "Host") {
			continue
		}
		skip := false
		for _, hop := range hopHeaders {
			if strings.EqualFold(key, hop) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		for _, v := range vals {
			dst.Add(key, v)
		}
	}
}

// flushWriter flushes after every write so relayed streams are delivered
// incrementally.
type flushWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return n, err
}
