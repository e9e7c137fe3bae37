package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apeckham/streamlit-assemblyai/internal/clipboard"
	"github.com/apeckham/streamlit-assemblyai/internal/config"
	"github.com/apeckham/streamlit-assemblyai/internal/metrics"
	"github.com/apeckham/streamlit-assemblyai/internal/render"
	"github.com/apeckham/streamlit-assemblyai/internal/server"
	"github.com/apeckham/streamlit-assemblyai/internal/session"
	"github.com/apeckham/streamlit-assemblyai/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvFile    = ".env"
	serviceName       = "diarize-web"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envFile := flag.String("env-file", defaultEnvFile, "Optional .env file with DIARIZE_* overrides")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// The API key is supplied per session and never appears here
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.Int("max_upload_mb", cfg.HTTP.MaxUploadMB),
		slog.String("assemblyai_base_url", cfg.AssemblyAI.BaseURL),
		slog.Duration("transcription_timeout", cfg.AssemblyAI.GetTimeoutDuration()),
		slog.Duration("poll_interval", cfg.AssemblyAI.GetPollInterval()),
		slog.Duration("session_idle_timeout", cfg.Session.GetIdleTimeout()),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	client, err := transcription.NewClient(transcription.Config{
		BaseURL:      cfg.AssemblyAI.BaseURL,
		Timeout:      cfg.AssemblyAI.GetTimeoutDuration(),
		PollInterval: cfg.AssemblyAI.GetPollInterval(),
		UserAgent:    serviceName + "/" + serviceVersion,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store := session.NewStore(logger, appMetrics, session.StoreConfig{
		IdleTimeout: cfg.Session.GetIdleTimeout(),
	})
	service := session.NewService(client, logger, appMetrics, session.ServiceConfig{})

	renderer, err := render.NewRenderer(clipboard.NewFrameCopier(render.CopyLabel), cfg.HTTP.MaxUploadMB)
	if err != nil {
		logger.Error("Failed to create renderer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	httpConfig := server.HTTPServerConfig{
		Port:         cfg.HTTP.Port,
		Address:      cfg.HTTP.Address,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
	}
	httpServer := server.NewHTTPServer(httpConfig, logger, cfg, store, service, renderer, client, appMetrics)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	logger.Info("Starting graceful shutdown...")

	// In-flight transcriptions may run up to the write timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.GetWriteTimeout()+5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	store.Stop()

	if err := client.Close(); err != nil {
		logger.Error("Error closing transcription client", slog.String("error", err.Error()))
	}

	stats := client.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("service_failures", stats.ServiceFailures),
		slog.Uint64("failed_requests", stats.FailedRequests),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
