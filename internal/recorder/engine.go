// Package recorder implements the voice recording engine behind the
// exam-practice answer flow: it owns the microphone stream, drives the
// per-tick analysis and voice-activity monitoring, enforces the duration
// ceiling, and produces the encoded artifact together with its analytics
// when the recording stops.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiexaminer/recorder-engine/internal/analysis"
	"github.com/aiexaminer/recorder-engine/internal/capture"
	"github.com/aiexaminer/recorder-engine/internal/encode"
)

// Engine is the recording state machine. One run goroutine with a single
// ticker drives both the 10 Hz sampling and the duration accounting
// (derived from the tick count), so the two concerns can never interleave
// inconsistently. All state is guarded by one mutex; lifecycle calls and
// ticks are serialized against it, and events are always emitted with the
// lock released.
//
// The stop event and callback fire exactly once per recording, only after
// the sampling loop has observed cancellation, and never with a sample
// appended afterwards.
type Engine struct {
	cfg       Config
	source    capture.Source
	callbacks Callbacks
	log       zerolog.Logger

	events chan Event

	mu        sync.Mutex
	state     State
	acquiring bool
	stream    capture.Stream
	sess      *session

	// retained after Stopped for playback and inspection; discarded on Reset
	lastArtifact  *Artifact
	lastAnalytics *AudioAnalytics

	loopCancel    context.CancelFunc
	acquireCancel context.CancelFunc

	// manualTicks disables the internal scheduler so tests can drive
	// ticks deterministically
	manualTicks bool
}

// New creates an engine. The configuration is immutable for the engine's
// lifetime; construct a new engine to change it.
func New(cfg Config, source capture.Source, callbacks Callbacks, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		source:    source,
		callbacks: callbacks,
		log:       log.With().Str("component", "recorder").Logger(),
		events:    make(chan Event, 128),
		state:     StateIdle,
	}, nil
}

// Events returns the engine's notification channel. Telemetry events are
// dropped when the consumer falls behind; lifecycle events are buffered
// and additionally delivered through the callbacks. Reset discards any
// events still buffered from the finished session.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ElapsedSeconds returns the recorded time of the active session,
// excluding paused time
func (e *Engine) ElapsedSeconds() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return 0
	}
	return e.sess.elapsedSeconds(e.cfg)
}

// Last returns the artifact and analytics of the most recently stopped
// recording, if one is retained
func (e *Engine) Last() (Artifact, AudioAnalytics, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastArtifact == nil {
		return Artifact{}, AudioAnalytics{}, false
	}
	return *e.lastArtifact, *e.lastAnalytics, true
}

// Start advances the two-step recording flow. With no stream held it
// acquires the microphone and arms the engine; with a stream held it
// begins recording. Permission failures return an error wrapping
// capture.ErrPermissionDenied and leave the engine Idle so the caller can
// retry. A missing encoder returns encode.ErrUnsupportedFormat, likewise
// back to Idle.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.acquiring || e.state == StateRecording || e.state == StatePaused || e.state == StateStopped {
		e.mu.Unlock()
		return ErrInvalidTransition
	}

	if e.stream == nil {
		return e.acquireLocked(ctx)
	}
	return e.beginLocked()
}

// acquireLocked requests the device. The lock is released for the
// duration of the acquisition: a permission prompt can take as long as
// the user wants. Reset during the prompt cancels the acquisition, and
// a stream granted after the reset is closed rather than installed.
func (e *Engine) acquireLocked(ctx context.Context) error {
	e.state = StateAwaitingPermission
	e.acquiring = true
	ctx, cancel := context.WithCancel(ctx)
	e.acquireCancel = cancel
	e.mu.Unlock()

	stream, err := e.source.Acquire(ctx, capture.Constraints{
		SampleRate:       e.cfg.SampleRate,
		Channels:         e.cfg.Channels,
		EchoCancellation: e.cfg.EchoCancellation,
		AutoGainControl:  e.cfg.AutoGain,
		NoiseSuppression: e.cfg.NoiseSuppression,
	})
	cancel()

	e.mu.Lock()
	e.acquiring = false
	e.acquireCancel = nil

	if e.state != StateAwaitingPermission {
		// a reset intervened while the prompt was open; the grant
		// arrives too late and the device must not stay open
		if err == nil {
			stream.Close()
		}
		e.mu.Unlock()
		e.log.Debug().Msg("acquisition canceled by reset")
		return fmt.Errorf("acquire stream: %w", context.Canceled)
	}

	if err != nil {
		e.state = StateIdle
		e.mu.Unlock()
		e.log.Warn().Err(err).Msg("microphone acquisition failed")
		return fmt.Errorf("acquire stream: %w", err)
	}

	e.stream = stream
	e.state = StateArmed
	e.mu.Unlock()
	e.log.Debug().Str("backend", e.source.Name()).Msg("microphone armed")
	return nil
}

// beginLocked starts recording on the held stream. Releases the lock
// before emitting the started event.
func (e *Engine) beginLocked() error {
	encoder, err := encode.Negotiate(e.cfg.Encodings)
	if err != nil {
		e.releaseStreamLocked()
		e.state = StateIdle
		e.mu.Unlock()
		e.log.Error().Err(err).Msg("no usable artifact encoding")
		return err
	}

	e.sess = newSession(e.cfg, encoder)
	e.state = StateRecording

	loopCtx, cancel := context.WithCancel(context.Background())
	e.loopCancel = cancel
	if !e.manualTicks {
		go e.run(loopCtx)
	}

	e.mu.Unlock()
	e.log.Info().
		Str("mime_type", encoder.MimeType()).
		Dur("max_duration", e.cfg.MaxDuration).
		Bool("vad", e.cfg.EnableVAD).
		Msg("recording started")
	e.emit([]Event{{Type: EventStarted}})
	return nil
}

// Pause freezes the elapsed clock and discards incoming frames. No-op
// unless currently Recording.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRecording {
		return ErrInvalidTransition
	}
	e.state = StatePaused
	e.log.Debug().Msg("recording paused")
	return nil
}

// Resume continues a paused recording. No-op unless currently Paused.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return ErrInvalidTransition
	}
	e.state = StateRecording
	e.log.Debug().Msg("recording resumed")
	return nil
}

// Stop ends the active recording, finalizes the artifact and analytics,
// and releases the stream. No-op unless Recording or Paused.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRecording && e.state != StatePaused {
		e.mu.Unlock()
		return ErrInvalidTransition
	}
	pending := e.finishLocked(StopRequested)
	e.mu.Unlock()
	e.emit(pending)
	return nil
}

// Reset discards the session, artifact and analytics, releases the
// stream, and returns the engine to Idle. Safe to call from any state,
// including mid-recording or mid-acquisition; no stop event is emitted
// and events buffered by the previous session are discarded.
func (e *Engine) Reset() {
	e.mu.Lock()
	if e.loopCancel != nil {
		e.loopCancel()
		e.loopCancel = nil
	}
	if e.acquireCancel != nil {
		e.acquireCancel()
		e.acquireCancel = nil
	}
	e.releaseStreamLocked()
	e.state = StateIdle
	e.sess = nil
	e.lastArtifact = nil
	e.lastAnalytics = nil
	e.mu.Unlock()

	e.drainEvents()
	e.log.Debug().Msg("recorder reset")
}

// drainEvents discards whatever the previous session left buffered so a
// consumer attaching after a reset never reads stale events
func (e *Engine) drainEvents() {
	for {
		select {
		case <-e.events:
		default:
			return
		}
	}
}

// Close releases everything the engine holds. Equivalent to Reset; kept
// as a separate name so defer sites read as teardown.
func (e *Engine) Close() error {
	e.Reset()
	return nil
}

// run is the consolidated scheduler: one ticker services sampling, VAD
// and duration accounting.
func (e *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.tick(ctx) {
				return
			}
		}
	}
}

// tick services one sampling tick. Returns false when the loop should
// exit. ctx is the loop's own context: a canceled loop never touches
// state that a newer session owns.
func (e *Engine) tick(ctx context.Context) bool {
	e.mu.Lock()
	if ctx.Err() != nil || (e.state != StateRecording && e.state != StatePaused) {
		e.mu.Unlock()
		return false
	}
	stream := e.stream
	e.mu.Unlock()

	// The device read blocks up to one frame; it happens outside the
	// lock so lifecycle calls stay responsive.
	frame, readErr := stream.ReadFrame()

	var pending []Event
	e.mu.Lock()
	switch {
	case ctx.Err() != nil || (e.state != StateRecording && e.state != StatePaused):
		// stopped or reset while reading; drop the frame
		e.mu.Unlock()
		return false
	case e.state == StatePaused:
		// elapsed frozen, frame discarded
		e.mu.Unlock()
		return true
	case readErr != nil:
		// device failure: stop with whatever was captured so far
		e.sess.lastErr = readErr
		e.log.Warn().Err(readErr).Msg("device failure during recording")
		pending = e.finishLocked(StopDeviceError)
	default:
		pending = e.sampleLocked(frame)
	}
	stopped := e.state == StateStopped
	e.mu.Unlock()

	e.emit(pending)
	return !stopped
}

// sampleLocked analyzes one frame, feeds the voice activity monitor, and
// applies the duration ceiling
func (e *Engine) sampleLocked(frame []int16) []Event {
	s := e.sess
	snap := analysis.Analyze(frame)
	s.appendFrame(frame, snap.Level)
	autoStop := s.monitor.Observe(snap.Level)

	var pending []Event
	if e.cfg.telemetryEnabled() {
		pending = append(pending, Event{Type: EventTelemetry, Telemetry: e.telemetryLocked(snap)})
	}

	switch {
	case s.elapsedSeconds(e.cfg) >= e.cfg.MaxDuration.Seconds():
		pending = append(pending, e.finishLocked(StopMaxDuration)...)
	case autoStop:
		pending = append(pending, e.finishLocked(StopSilence)...)
	}
	return pending
}

func (e *Engine) telemetryLocked(snap analysis.Snapshot) *Telemetry {
	t := &Telemetry{
		ElapsedSeconds: e.sess.elapsedSeconds(e.cfg),
		Level:          snap.Level,
		SilenceRun:     e.sess.monitor.SilenceRun(),
	}
	if e.cfg.ShowQualityMeter {
		ind := analysis.GradeIndicators(snap.Level, snap.Quality)
		t.Indicators = &ind
	}
	if e.cfg.ShowWaveform {
		t.Waveform = e.sess.waveform()
	}
	return t
}

// finishLocked is the single transition into Stopped. Called only while
// Recording or Paused, so the stop event cannot be produced twice. The
// artifact and analytics are derived together from the same history.
func (e *Engine) finishLocked(reason StopReason) []Event {
	e.state = StateStopped
	if e.loopCancel != nil {
		e.loopCancel()
		e.loopCancel = nil
	}

	s := e.sess
	artifact := e.encodeArtifact(s)
	analytics := Summarize(s.history, s.elapsedSeconds(e.cfg), e.cfg.SilenceThreshold)
	e.lastArtifact = &artifact
	e.lastAnalytics = &analytics

	e.releaseStreamLocked()

	e.log.Info().
		Str("reason", string(reason)).
		Float64("duration_s", analytics.DurationSeconds).
		Float64("silence_ratio", analytics.SilenceRatio).
		Int("artifact_bytes", len(artifact.Data)).
		Msg("recording stopped")

	return []Event{{
		Type:      EventStopped,
		Artifact:  &artifact,
		Analytics: &analytics,
		Reason:    reason,
	}}
}

// encodeArtifact finalizes the capture. An encoder failure degrades to
// raw PCM rather than losing the take.
func (e *Engine) encodeArtifact(s *session) Artifact {
	data, err := s.encoder.Encode(s.pcm, e.cfg.SampleRate, e.cfg.Channels)
	if err != nil {
		e.log.Warn().Err(err).Msg("artifact encoding failed, falling back to raw PCM")
		return Artifact{Data: encode.SamplesToBytes(s.pcm), MimeType: encode.MimePCM}
	}
	return Artifact{Data: data, MimeType: s.encoder.MimeType()}
}

func (e *Engine) releaseStreamLocked() {
	if e.stream == nil {
		return
	}
	if err := e.stream.Close(); err != nil {
		e.log.Warn().Err(err).Msg("stream close failed")
	}
	e.stream = nil
}

// emit delivers events with the lock released. The channel send never
// blocks; a full buffer drops telemetry silently and lifecycle events
// with a warning, since the callbacks carry them reliably.
func (e *Engine) emit(pending []Event) {
	for _, ev := range pending {
		select {
		case e.events <- ev:
		default:
			if ev.Type != EventTelemetry {
				e.log.Warn().Str("type", string(ev.Type)).Msg("event buffer full, event dropped")
			}
		}

		switch ev.Type {
		case EventStarted:
			if e.callbacks.OnRecordingStart != nil {
				e.callbacks.OnRecordingStart()
			}
		case EventStopped:
			if e.callbacks.OnRecordingStop != nil {
				e.callbacks.OnRecordingStop(*ev.Artifact, *ev.Analytics)
			}
		}
	}
}
