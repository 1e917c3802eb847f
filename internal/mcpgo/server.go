// Package mcpgo exposes a catalog session as MCP tools using mark3labs/mcp-go
package mcpgo

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/noot-app/food-explorer/internal/auth"
	"github.com/noot-app/food-explorer/internal/config"
	"github.com/noot-app/food-explorer/internal/input"
	"github.com/noot-app/food-explorer/internal/orchestrator"
	"github.com/noot-app/food-explorer/internal/store"
	"github.com/noot-app/food-explorer/internal/version"
)

// healthCacheDuration bounds how often /health reaches the backing store
const healthCacheDuration = 10 * time.Second

// responseRecorder wraps http.ResponseWriter to capture response details
type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	bytesWritten  int
	headerWritten bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.headerWritten {
		return
	}
	r.statusCode = code
	r.headerWritten = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.headerWritten {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytesWritten += n
	return n, err
}

// Flush keeps streamed responses working through the recorder
func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Session bundles what a tool call acts on
type Session struct {
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Search       *input.SearchBox
}

// Server wraps the mark3labs MCP server with authentication
type Server struct {
	mcpServer *server.MCPServer
	session   Session
	health    Pinger
	auth      *auth.BearerTokenAuth
	log       *slog.Logger

	// Health check caching to prevent DOS attacks
	healthMu        sync.RWMutex
	lastHealthCheck time.Time
	lastHealthError error
}

// NewServer creates the MCP server for one session. health is pinged by
// the /health endpoint and may be nil.
func NewServer(session Session, health Pinger, authenticator *auth.BearerTokenAuth, logger *slog.Logger) *Server {
	mcpServer := server.NewMCPServer(
		"Food Explorer",
		version.Tag(),
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		session:   session,
		health:    health,
		auth:      authenticator,
		log:       config.Component(logger, "mcp"),
	}

	s.addTools()

	return s
}

// checkHealthWithCache checks health with 10-second caching to prevent DOS attacks
func (s *Server) checkHealthWithCache(ctx context.Context) error {
	s.healthMu.RLock()
	if time.Since(s.lastHealthCheck) < healthCacheDuration {
		err := s.lastHealthError
		s.healthMu.RUnlock()
		s.log.Debug("Health check: using cached result",
			"cached_error", err != nil,
			"cache_age", time.Since(s.lastHealthCheck))
		return err
	}
	s.healthMu.RUnlock()

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	// Another goroutine may have refreshed while we waited for the write lock
	if time.Since(s.lastHealthCheck) < healthCacheDuration {
		return s.lastHealthError
	}

	var err error
	if s.health != nil {
		s.log.Debug("Health check: pinging cart store")
		err = s.health.Ping(ctx)
	}
	s.lastHealthCheck = time.Now()
	s.lastHealthError = err

	return err
}

// Handler returns the HTTP routes: an open /health and the authenticated
// streamable MCP endpoint at /mcp
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := s.checkHealthWithCache(r.Context()); err != nil {
			s.log.Error("Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy",
		})
	})

	// One session per process, so the transport keeps no per-client state
	streamableServer := server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	)

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovery := recover(); recovery != nil {
				s.log.Error("MCP endpoint panic recovered",
					"panic", recovery,
					"method", r.Method,
					"url", r.URL.String(),
					"remote_addr", r.RemoteAddr)
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("Internal Server Error"))
			}
		}()

		s.log.Debug("MCP request received",
			"method", r.Method,
			"content_type", r.Header.Get("Content-Type"),
			"content_length", r.ContentLength,
			"remote_addr", r.RemoteAddr)

		if !s.auth.IsAuthorized(r) {
			s.auth.SetUnauthorizedHeaders(w)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized"))
			s.log.Warn("Unauthorized MCP request", "remote_addr", r.RemoteAddr, "user_agent", r.UserAgent())
			return
		}

		recorder := &responseRecorder{ResponseWriter: w}
		streamableServer.ServeHTTP(recorder, r)

		s.log.Debug("MCP response sent",
			"status_code", recorder.statusCode,
			"response_size", recorder.bytesWritten)
	})

	return mux
}

// ServeHTTP serves the MCP server over HTTP with authentication
func (s *Server) ServeHTTP(addr string) error {
	s.log.Info("Starting MCP server", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ServeStdio serves the MCP server over stdio (no auth required for local use)
func (s *Server) ServeStdio() error {
	s.log.Info("Starting MCP server in stdio mode")
	return server.ServeStdio(s.mcpServer)
}
