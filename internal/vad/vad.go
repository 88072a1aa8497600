package vad

// Config holds configuration for silence-based voice activity detection
type Config struct {
	Enabled          bool    // When false, no silence accounting occurs at all
	SilenceThreshold float64 // Normalized level below which a tick counts as silence
	SilenceTicks     int     // Consecutive silent ticks before auto-stop fires
}

// Monitor accumulates consecutive below-threshold ticks and signals when
// the configured silence window has elapsed. It is not safe for concurrent
// use; the recording engine serializes all calls.
type Monitor struct {
	config     Config
	silenceRun int
}

// NewMonitor creates a voice activity monitor for one recording session
func NewMonitor(config Config) *Monitor {
	return &Monitor{config: config}
}

// Observe feeds one tick's level into the monitor and reports whether the
// recording should auto-stop. A level at or above the threshold resets the
// silence run; once the run reaches the configured window the monitor
// signals once and resets.
//
// Silence accounting starts on the very first tick: a speaker who is slow
// to begin can be auto-stopped by pre-roll silence alone. That matches the
// behavior the exam-practice UI shipped with and is deliberately not fixed
// here.
func (m *Monitor) Observe(level float64) bool {
	if !m.config.Enabled {
		return false
	}

	if level >= m.config.SilenceThreshold {
		m.silenceRun = 0
		return false
	}

	m.silenceRun++
	if m.silenceRun >= m.config.SilenceTicks {
		m.silenceRun = 0
		return true
	}
	return false
}

// SilenceRun returns the current count of consecutive silent ticks
func (m *Monitor) SilenceRun() int {
	return m.silenceRun
}

// Reset clears the silence accounting
func (m *Monitor) Reset() {
	m.silenceRun = 0
}
