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

	"github.com/khan2a/agent-conversation/internal/config"
	"github.com/khan2a/agent-conversation/internal/metrics"
	"github.com/khan2a/agent-conversation/internal/server"
	"github.com/khan2a/agent-conversation/internal/stream"
	"github.com/khan2a/agent-conversation/internal/transcode"
	"github.com/khan2a/agent-conversation/internal/webhook"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "agent-conversation"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
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

	logger.Info("Configuration loaded",
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("port", cfg.Server.Port),
		slog.String("host_name", cfg.Server.HostName),
		slog.String("audio_root", cfg.Audio.RootDir),
		slog.Int("default_sample_rate", cfg.Audio.DefaultSampleRate),
		slog.Float64("chunk_duration", cfg.Audio.ChunkDuration),
		slog.String("ffmpeg_path", cfg.Transcode.FFmpegPath),
		slog.Int("transcode_timeout", cfg.Transcode.Timeout),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Verify the audio root exists before accepting any playback session
	if info, err := os.Stat(cfg.Audio.RootDir); err != nil || !info.IsDir() {
		logger.Error("Audio root is not a readable directory", slog.String("audio_root", cfg.Audio.RootDir))
		os.Exit(1)
	}

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize the transcoding pipeline
	transcoder := transcode.New(
		cfg.Transcode.FFmpegPath,
		cfg.Transcode.GetTimeoutDuration(),
		cfg.Transcode.TempDir,
		logger,
	)

	// Initialize session registry and webhook store
	registry := stream.NewRegistry(logger)
	store := webhook.NewStore(cfg.Webhook.MaxStored)

	// Initialize and start the HTTP/WebSocket server
	srv := server.New(cfg, logger, appMetrics, registry, store, transcoder)
	if err := srv.Start(); err != nil {
		logger.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping server", slog.String("error", err.Error()))
	}

	logger.Info("Final session statistics",
		slog.Uint64("sessions_started", registry.TotalStarted()),
		slog.Int("sessions_active", registry.ActiveCount()),
		slog.Int("callbacks_stored", store.Count()),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
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
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Determine output destination
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

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
