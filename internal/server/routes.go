package server

import "net/http"

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Chat with transparent tool injection
	mux.Handle("/api/chat", s.app.ChatHandler)

	// Health and version
	mux.Handle("/health", s.app.HealthHandler)
	mux.Handle("/api/version", s.app.VersionHandler)

	// Everything else is forwarded verbatim to Ollama
	mux.Handle("/", s.app.ProxyHandler)

	return mux
}
