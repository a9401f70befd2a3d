package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scamwatch/internal/metrics"
	"scamwatch/internal/telegram"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthTimeout = 3 * time.Second

// AuthStatus reports the platform session state.
type AuthStatus interface {
	State(ctx context.Context) (telegram.AuthState, error)
}

// Pinger checks a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ListReloader drops the cached keyword and forbidden name lists.
type ListReloader interface {
	Invalidate(ctx context.Context) error
}

// QueueStatus exposes the sanction queue occupancy.
type QueueStatus interface {
	Len() int
	Cap() int
}

// Dependencies exposes core dependencies to handlers that need them.
// Nil fields are reported as unavailable.
type Dependencies struct {
	Auth  AuthStatus
	Store Pinger
	Lists ListReloader
	Queue QueueStatus
}

// Server wraps an http.Server with predefined routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	deps       Dependencies
	basePath   string
}

// New creates a new HTTP server listening on addr with health and metrics endpoints.
func New(addr string, logger *slog.Logger, metricRegistry *metrics.Metrics, deps Dependencies, basePath string) *Server {
	server := &Server{
		logger:   logger.With("component", "http"),
		metrics:  metricRegistry,
		deps:     deps,
		basePath: normaliseBasePath(basePath),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", server.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/admin/reload-lists", server.handleReloadLists)

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mountWithBasePath(server.basePath, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if server.basePath != "" {
		server.logger.Info("http server configured with base path", "base_path", server.basePath)
	}

	return server
}

// Handler returns the root handler, base path included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

type healthReport struct {
	Status   string `json:"status"`
	Auth     string `json:"auth"`
	Store    string `json:"store"`
	Queue    int    `json:"queue"`
	QueueCap int    `json:"queue_cap"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	report := healthReport{Status: "ok", Auth: "unavailable", Store: "unavailable"}
	healthy := true

	if s.deps.Auth != nil {
		state, err := s.deps.Auth.State(ctx)
		report.Auth = string(state)
		if err != nil || state != telegram.AuthReady {
			healthy = false
		}
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(ctx); err != nil {
			s.logger.Warn("store ping failed", "error", err)
			report.Store = "down"
			healthy = false
		} else {
			report.Store = "up"
		}
	}
	if s.deps.Queue != nil {
		report.Queue = s.deps.Queue.Len()
		report.QueueCap = s.deps.Queue.Cap()
	}

	status := http.StatusOK
	if !healthy {
		report.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleReloadLists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Lists == nil {
		http.Error(w, "lists unavailable", http.StatusServiceUnavailable)
		return
	}

	if err := s.deps.Lists.Invalidate(r.Context()); err != nil {
		s.metrics.Error("http")
		s.logger.Error("failed reloading lists", "error", err)
		http.Error(w, "failed reloading lists", http.StatusInternalServerError)
		return
	}

	s.logger.Info("keyword lists invalidated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func mountWithBasePath(basePath string, handler http.Handler) http.Handler {
	if basePath == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, basePath) {
			http.NotFound(w, r)
			return
		}
		if len(r.URL.Path) > len(basePath) && r.URL.Path[len(basePath)] != '/' {
			http.NotFound(w, r)
			return
		}
		trimmed := strings.TrimPrefix(r.URL.Path, basePath)
		if trimmed == "" {
			trimmed = "/"
		}
		r.URL.Path = trimmed
		if r.URL.RawPath != "" {
			rawTrimmed := strings.TrimPrefix(r.URL.RawPath, basePath)
			if rawTrimmed == "" {
				rawTrimmed = "/"
			}
			r.URL.RawPath = rawTrimmed
		}
		handler.ServeHTTP(w, r)
	})
}

func normaliseBasePath(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}
