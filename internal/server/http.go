package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apeckham/streamlit-assemblyai/internal/config"
	"github.com/apeckham/streamlit-assemblyai/internal/metrics"
	"github.com/apeckham/streamlit-assemblyai/internal/render"
	"github.com/apeckham/streamlit-assemblyai/internal/session"
	"github.com/apeckham/streamlit-assemblyai/internal/transcription"
)

const (
	serviceName    = "diarize-web"
	serviceVersion = "1.0.0"

	// multipart parts beyond this are spooled to disk by net/http
	multipartMemory = 32 << 20
)

// StatsProvider reports transcription client statistics
type StatsProvider interface {
	GetStats() transcription.ClientStats
}

// HTTPServer serves the transcription form and monitoring endpoints
type HTTPServer struct {
	server   *http.Server
	router   *mux.Router
	logger   *slog.Logger
	config   *config.Config
	sessions *session.Store
	service  *session.Service
	renderer *render.Renderer
	stats    StatsProvider
	metrics  *metrics.Metrics

	// Server state
	startTime time.Time
	mu        sync.RWMutex
	running   bool
}

// HTTPServerConfig contains HTTP server configuration
type HTTPServerConfig struct {
	Port         int
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(cfg HTTPServerConfig, logger *slog.Logger, appConfig *config.Config,
	sessions *session.Store, service *session.Service, renderer *render.Renderer,
	stats StatsProvider, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		sessions:  sessions,
		service:   service,
		renderer:  renderer,
		stats:     stats,
		metrics:   m,
		startTime: time.Now(),
	}

	h.router = mux.NewRouter()
	h.setupRoutes(h.router)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      h.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP routes
func (h *HTTPServer) setupRoutes(r *mux.Router) {
	// Form
	r.HandleFunc("/", h.withMetrics("/", h.handlePage)).Methods(http.MethodGet)
	r.HandleFunc("/transcribe", h.withMetrics("/transcribe", h.handleTranscribe)).Methods(http.MethodPost)
	r.HandleFunc("/clear", h.withMetrics("/clear", h.handleClear)).Methods(http.MethodPost)
	r.HandleFunc("/reset", h.withMetrics("/reset", h.handleReset)).Methods(http.MethodPost)

	// Monitoring
	r.HandleFunc("/health", h.withMetrics("/health", h.handleHealth)).Methods(http.MethodGet)
	r.HandleFunc("/config", h.withMetrics("/config", h.handleConfig)).Methods(http.MethodGet)

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	r.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = h.withMetrics("method_not_allowed", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	r.NotFoundHandler = h.withMetrics("not_found", http.NotFound)
}

// Handler returns the server's root handler
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()

	status := "healthy"
	if !running {
		status = "starting"
	}

	stats := h.stats.GetStats()

	health := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": map[string]interface{}{
			"sessions": map[string]interface{}{
				"active": h.sessions.Count(),
			},
			"transcription": map[string]interface{}{
				"total_requests":   stats.TotalRequests,
				"success_rate":     stats.SuccessRate,
				"service_failures": stats.ServiceFailures,
				"failed_requests":  stats.FailedRequests,
				"active_requests":  stats.ActiveRequests,
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"address":       h.config.HTTP.Address,
			"port":          h.config.HTTP.Port,
			"read_timeout":  h.config.HTTP.ReadTimeout,
			"write_timeout": h.config.HTTP.WriteTimeout,
			"max_upload_mb": h.config.HTTP.MaxUploadMB,
		},
		"assemblyai": map[string]interface{}{
			"base_url":      h.config.AssemblyAI.BaseURL,
			"timeout":       h.config.AssemblyAI.Timeout,
			"poll_interval": h.config.AssemblyAI.PollInterval,
		},
		"session": map[string]interface{}{
			"idle_timeout":  h.config.Session.IdleTimeout,
			"secure_cookie": h.config.Session.SecureCookie,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
