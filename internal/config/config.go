package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/aiexaminer/recorder-engine/internal/recorder"
)

// Config holds all configuration for the recorder engine service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Recorder configuration
	MaxDurationSeconds     int     `envconfig:"RECORDER_MAX_DURATION_SECONDS" default:"300"` // Hard recording ceiling
	EnableVAD              bool    `envconfig:"RECORDER_ENABLE_VAD" default:"true"`          // Silence-based auto-stop
	SilenceThreshold       float64 `envconfig:"RECORDER_SILENCE_THRESHOLD" default:"0.1"`    // Normalized level in [0,1]
	SilenceDurationSeconds float64 `envconfig:"RECORDER_SILENCE_DURATION_SECONDS" default:"2"`
	AutoGain               bool    `envconfig:"RECORDER_AUTO_GAIN" default:"true"`
	NoiseSuppression       bool    `envconfig:"RECORDER_NOISE_SUPPRESSION" default:"true"`
	EchoCancellation       bool    `envconfig:"RECORDER_ECHO_CANCELLATION" default:"true"`
	SampleRate             int     `envconfig:"RECORDER_SAMPLE_RATE" default:"16000"` // Hz

	// Telemetry toggles; these only gate telemetry emission
	ShowWaveform     bool `envconfig:"RECORDER_SHOW_WAVEFORM" default:"true"`
	ShowTimer        bool `envconfig:"RECORDER_SHOW_TIMER" default:"true"`
	ShowQualityMeter bool `envconfig:"RECORDER_SHOW_QUALITY_METER" default:"true"`

	// Deepgram transcription configuration. The engine never transcribes;
	// the gateway forwards finished artifacts when a key is configured.
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`  // Language code (en, es, fr, etc.)

	// Resilience configuration for the transcription upload
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges the recorder cannot run with
func (c *Config) Validate() error {
	if c.SilenceThreshold < 0 || c.SilenceThreshold > 1 {
		return fmt.Errorf("RECORDER_SILENCE_THRESHOLD must be in [0,1], got %v", c.SilenceThreshold)
	}
	if c.MaxDurationSeconds <= 0 {
		return fmt.Errorf("RECORDER_MAX_DURATION_SECONDS must be positive, got %d", c.MaxDurationSeconds)
	}
	if c.EnableVAD && c.SilenceDurationSeconds <= 0 {
		return fmt.Errorf("RECORDER_SILENCE_DURATION_SECONDS must be positive when VAD is enabled, got %v", c.SilenceDurationSeconds)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("RECORDER_SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	return nil
}

// TranscriptionEnabled reports whether finished artifacts should be
// forwarded to Deepgram
func (c *Config) TranscriptionEnabled() bool {
	return c.DeepgramAPIKey != ""
}

// RecorderConfig converts the environment configuration into the engine's
// immutable session configuration
func (c *Config) RecorderConfig() recorder.Config {
	rc := recorder.DefaultConfig()
	rc.MaxDuration = time.Duration(c.MaxDurationSeconds) * time.Second
	rc.EnableVAD = c.EnableVAD
	rc.SilenceThreshold = c.SilenceThreshold
	rc.SilenceDuration = time.Duration(c.SilenceDurationSeconds * float64(time.Second))
	rc.AutoGain = c.AutoGain
	rc.NoiseSuppression = c.NoiseSuppression
	rc.EchoCancellation = c.EchoCancellation
	rc.SampleRate = c.SampleRate
	rc.ShowWaveform = c.ShowWaveform
	rc.ShowTimer = c.ShowTimer
	rc.ShowQualityMeter = c.ShowQualityMeter
	return rc
}
