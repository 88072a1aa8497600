package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aiexaminer/recorder-engine/internal/capture"
	_ "github.com/aiexaminer/recorder-engine/internal/capture/malgo"
	_ "github.com/aiexaminer/recorder-engine/internal/capture/portaudio"
	"github.com/aiexaminer/recorder-engine/internal/config"
	"github.com/aiexaminer/recorder-engine/internal/gateway"
	"github.com/aiexaminer/recorder-engine/internal/observability"
	"github.com/aiexaminer/recorder-engine/internal/playback"
	"github.com/aiexaminer/recorder-engine/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Int("sample_rate", cfg.SampleRate).
		Bool("vad", cfg.EnableVAD).
		Bool("transcription", cfg.TranscriptionEnabled()).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Recorder Engine Service starting")

	// Transcription is optional: without a Deepgram key the UI still gets
	// audio and analytics
	var transcriber stt.Transcriber
	if cfg.TranscriptionEnabled() {
		transcriber = stt.NewDeepgramClient(cfg, logger)
	}

	// Playback is best-effort: a headless host records fine
	player, err := playback.NewController(cfg.SampleRate, 1, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("playback unavailable, continuing without it")
		player = nil
	}

	mux := http.NewServeMux()

	// Recorder WebSocket endpoint
	mux.HandleFunc("/ws/recorder", gateway.Handler(cfg, transcriber, player))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint
	captureCheck := func(ctx context.Context) (bool, error) {
		src, err := capture.Auto(ctx, logger)
		if err != nil {
			return false, err
		}
		return true, src.Ping(ctx)
	}
	transcriptionCheck := func(ctx context.Context) (bool, error) {
		// Config-level check only; a real API call per readiness probe
		// would cost money
		return true, nil
	}
	checks := map[string]observability.HealthCheckFunc{"capture": captureCheck}
	if cfg.TranscriptionEnabled() {
		checks["deepgram"] = transcriptionCheck
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/recorder", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
