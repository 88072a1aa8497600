package recorder

import (
	"fmt"
	"time"
)

// Config holds the per-session recorder configuration. It is treated as
// immutable once the engine is constructed.
type Config struct {
	// MaxDuration is the hard recording ceiling; reaching it stops the
	// recording exactly as an explicit Stop would
	MaxDuration time.Duration

	// EnableVAD turns silence-based auto-stop on. When false no silence
	// accounting happens and only MaxDuration can end a recording.
	EnableVAD bool

	// SilenceThreshold is the normalized level below which a tick counts
	// as silence, in [0, 1]
	SilenceThreshold float64

	// SilenceDuration is how long the level must stay below the
	// threshold before auto-stop fires
	SilenceDuration time.Duration

	// Capture hints forwarded to the device
	AutoGain         bool
	NoiseSuppression bool
	EchoCancellation bool

	// SampleRate in Hz of the capture stream
	SampleRate int

	// Channels of the capture stream; exam answers are mono
	Channels int

	// Encodings is the preference-ordered list of artifact MIME types;
	// empty means encode.DefaultPreferences
	Encodings []string

	// Telemetry toggles. These only gate telemetry event emission and
	// the fields carried on it; core behavior ignores them.
	ShowWaveform     bool
	ShowTimer        bool
	ShowQualityMeter bool

	// TickInterval is the sampling tick period. The 100ms default gives
	// the 10 ticks/second the analysis and VAD thresholds are tuned for.
	TickInterval time.Duration
}

// DefaultConfig returns the configuration the exam-practice UI ships with
func DefaultConfig() Config {
	return Config{
		MaxDuration:      5 * time.Minute,
		EnableVAD:        true,
		SilenceThreshold: 0.1,
		SilenceDuration:  2 * time.Second,
		AutoGain:         true,
		NoiseSuppression: true,
		EchoCancellation: true,
		SampleRate:       16000,
		Channels:         1,
		ShowWaveform:     true,
		ShowTimer:        true,
		ShowQualityMeter: true,
		TickInterval:     100 * time.Millisecond,
	}
}

// Validate checks the configuration for values the engine cannot run with
func (c Config) Validate() error {
	if c.MaxDuration <= 0 {
		return fmt.Errorf("recorder config: max duration must be positive, got %v", c.MaxDuration)
	}
	if c.SilenceThreshold < 0 || c.SilenceThreshold > 1 {
		return fmt.Errorf("recorder config: silence threshold must be in [0,1], got %v", c.SilenceThreshold)
	}
	if c.EnableVAD && c.SilenceDuration <= 0 {
		return fmt.Errorf("recorder config: silence duration must be positive when VAD is enabled, got %v", c.SilenceDuration)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("recorder config: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("recorder config: channels must be positive, got %d", c.Channels)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("recorder config: tick interval must be positive, got %v", c.TickInterval)
	}
	return nil
}

// silenceTicks converts the silence window into sampling ticks
func (c Config) silenceTicks() int {
	return int(c.SilenceDuration / c.TickInterval)
}

// telemetryEnabled reports whether any telemetry consumer is configured
func (c Config) telemetryEnabled() bool {
	return c.ShowWaveform || c.ShowTimer || c.ShowQualityMeter
}
