package recorder

import (
	"github.com/aiexaminer/recorder-engine/internal/encode"
	"github.com/aiexaminer/recorder-engine/internal/vad"
)

// waveformWindow is how many recent level samples the telemetry waveform
// carries. The full history is kept separately for analytics.
const waveformWindow = 50

// session owns the mutable state of one recording. It is created when
// recording begins, survives pause/resume, and is replaced (never
// mutated back to fresh) on reset. All access is serialized by the
// engine's lock.
type session struct {
	encoder encode.Encoder
	monitor *vad.Monitor

	pcm     []int16   // full interleaved capture, source of the artifact
	history []float64 // one normalized level per sampling tick
	ticks   int       // sampling ticks spent in StateRecording

	lastErr error // device failure that forced the stop, if any
}

func newSession(cfg Config, encoder encode.Encoder) *session {
	expectTicks := int(cfg.MaxDuration / cfg.TickInterval)
	return &session{
		encoder: encoder,
		monitor: vad.NewMonitor(vad.Config{
			Enabled:          cfg.EnableVAD,
			SilenceThreshold: cfg.SilenceThreshold,
			SilenceTicks:     cfg.silenceTicks(),
		}),
		history: make([]float64, 0, expectTicks),
	}
}

// appendFrame records one tick's samples and level
func (s *session) appendFrame(frame []int16, level float64) {
	s.pcm = append(s.pcm, frame...)
	s.history = append(s.history, level)
	s.ticks++
}

// elapsedSeconds derives the recorded time from the tick count, so paused
// time is excluded by construction
func (s *session) elapsedSeconds(cfg Config) float64 {
	return float64(s.ticks) * cfg.TickInterval.Seconds()
}

// waveform returns the most recent level window for live display
func (s *session) waveform() []float64 {
	start := len(s.history) - waveformWindow
	if start < 0 {
		start = 0
	}
	out := make([]float64, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}
