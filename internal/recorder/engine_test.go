package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiexaminer/recorder-engine/internal/capture"
	"github.com/aiexaminer/recorder-engine/internal/encode"
)

// fakeStream serves scripted frames; after the script runs out it repeats
// the last frame. failAt >= 0 makes the read with that index fail, which
// simulates a device disconnect.
type fakeStream struct {
	mu     sync.Mutex
	frames [][]int16
	idx    int
	failAt int
	closed bool
}

func (s *fakeStream) ReadFrame() ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, capture.ErrStreamClosed
	}
	if s.failAt >= 0 && s.idx >= s.failAt {
		return nil, fmt.Errorf("device disconnected")
	}

	frame := make([]int16, 160)
	if s.idx < len(s.frames) {
		frame = s.frames[s.idx]
	} else if len(s.frames) > 0 {
		frame = s.frames[len(s.frames)-1]
	}
	s.idx++
	return frame, nil
}

func (s *fakeStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeSource struct {
	deny     bool
	stream   *fakeStream
	acquires int
}

func (f *fakeSource) Name() string                   { return "fake" }
func (f *fakeSource) Ping(context.Context) error     { return nil }
func (f *fakeSource) Acquire(_ context.Context, _ capture.Constraints) (capture.Stream, error) {
	f.acquires++
	if f.deny {
		return nil, fmt.Errorf("%w: denied by test", capture.ErrPermissionDenied)
	}
	return f.stream, nil
}

// levelFrame builds a constant-amplitude frame whose RMS level is the
// given normalized value
func levelFrame(level float64) []int16 {
	frame := make([]int16, 160)
	value := int16(level * 32768)
	for i := range frame {
		frame[i] = value
	}
	return frame
}

// script builds a frame sequence from (level, ticks) pairs
func script(segments ...struct {
	level float64
	ticks int
}) [][]int16 {
	var frames [][]int16
	for _, seg := range segments {
		for i := 0; i < seg.ticks; i++ {
			frames = append(frames, levelFrame(seg.level))
		}
	}
	return frames
}

func seg(level float64, ticks int) struct {
	level float64
	ticks int
} {
	return struct {
		level float64
		ticks int
	}{level, ticks}
}

// recorded collects callback invocations
type recorded struct {
	mu        sync.Mutex
	starts    int
	stops     int
	artifact  Artifact
	analytics AudioAnalytics
}

func (r *recorded) callbacks() Callbacks {
	return Callbacks{
		OnRecordingStart: func() {
			r.mu.Lock()
			r.starts++
			r.mu.Unlock()
		},
		OnRecordingStop: func(a Artifact, an AudioAnalytics) {
			r.mu.Lock()
			r.stops++
			r.artifact = a
			r.analytics = an
			r.mu.Unlock()
		},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxDuration = 5 * time.Second
	cfg.EnableVAD = false
	cfg.Encodings = []string{encode.MimePCM}
	cfg.ShowWaveform = false
	cfg.ShowTimer = false
	cfg.ShowQualityMeter = false
	return cfg
}

// newTestEngine builds an engine with the scheduler disabled; tests call
// tick() themselves so every scenario is deterministic
func newTestEngine(t *testing.T, cfg Config, src capture.Source, rec *recorded) *Engine {
	t.Helper()
	e, err := New(cfg, src, rec.callbacks(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.manualTicks = true
	return e
}

// startRecording walks the two-step flow into StateRecording
func startRecording(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("first Start (acquire) failed: %v", err)
	}
	if got := e.State(); got != StateArmed {
		t.Fatalf("expected armed after acquisition, got %v", got)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("second Start (record) failed: %v", err)
	}
	if got := e.State(); got != StateRecording {
		t.Fatalf("expected recording, got %v", got)
	}
}

func tickN(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.tick(context.Background())
	}
}

func TestTwoStepStart(t *testing.T) {
	src := &fakeSource{stream: &fakeStream{failAt: -1}}
	rec := &recorded{}
	e := newTestEngine(t, testConfig(), src, rec)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if rec.starts != 0 {
		t.Error("start callback must not fire while merely armed")
	}

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if rec.starts != 1 {
		t.Errorf("expected exactly one start callback, got %d", rec.starts)
	}
	if src.acquires != 1 {
		t.Errorf("expected one acquisition for the whole flow, got %d", src.acquires)
	}
}

func TestPermissionDenied(t *testing.T) {
	// scenario: the user refuses the microphone prompt
	src := &fakeSource{deny: true}
	rec := &recorded{}
	e := newTestEngine(t, testConfig(), src, rec)

	err := e.Start(context.Background())
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if got := e.State(); got != StateIdle {
		t.Errorf("expected idle after denial, got %v", got)
	}
	if rec.starts != 0 || rec.stops != 0 {
		t.Error("no callbacks may fire on a denied acquisition")
	}

	// the attempt is retryable
	src.deny = false
	src.stream = &fakeStream{failAt: -1}
	if err := e.Start(context.Background()); err != nil {
		t.Errorf("retry after denial failed: %v", err)
	}
}

func TestDurationCeiling(t *testing.T) {
	// scenario: 5s ceiling, VAD off, constant speech
	cfg := testConfig()
	src := &fakeSource{stream: &fakeStream{failAt: -1, frames: script(seg(0.5, 60))}}
	rec := &recorded{}
	e := newTestEngine(t, cfg, src, rec)
	startRecording(t, e)

	tickN(e, 49)
	if got := e.State(); got != StateRecording {
		t.Fatalf("stopped early at tick 49: %v", got)
	}

	tickN(e, 1) // tick 50 completes 5.0s
	if got := e.State(); got != StateStopped {
		t.Fatalf("expected stopped at the ceiling, got %v", got)
	}

	if rec.stops != 1 {
		t.Fatalf("expected exactly one stop callback, got %d", rec.stops)
	}
	if rec.analytics.DurationSeconds > cfg.MaxDuration.Seconds() {
		t.Errorf("duration %v exceeds the ceiling %v",
			rec.analytics.DurationSeconds, cfg.MaxDuration.Seconds())
	}
	if rec.analytics.DurationSeconds != 5.0 {
		t.Errorf("expected exactly 5s recorded, got %v", rec.analytics.DurationSeconds)
	}
	if rec.analytics.SilenceRatio != 0 {
		t.Errorf("constant speech must have silence ratio 0, got %v", rec.analytics.SilenceRatio)
	}

	// further ticks change nothing
	tickN(e, 5)
	if rec.stops != 1 {
		t.Errorf("extra ticks produced extra stop callbacks: %d", rec.stops)
	}
}

func TestVADAutoStop(t *testing.T) {
	// scenario: 1s of speech then sustained silence with a 2s window
	cfg := testConfig()
	cfg.EnableVAD = true
	cfg.SilenceThreshold = 0.1
	cfg.SilenceDuration = 2 * time.Second
	cfg.MaxDuration = time.Minute

	src := &fakeSource{stream: &fakeStream{failAt: -1, frames: script(seg(0.5, 10), seg(0.01, 50))}}
	rec := &recorded{}
	e := newTestEngine(t, cfg, src, rec)
	startRecording(t, e)

	tickN(e, 29) // 10 voiced + 19 silent: one short of the window
	if got := e.State(); got != StateRecording {
		t.Fatalf("auto-stop fired early: %v", got)
	}

	tickN(e, 1) // the 20th silent tick
	if got := e.State(); got != StateStopped {
		t.Fatalf("expected auto-stop at the silence window, got %v", got)
	}
	if rec.stops != 1 {
		t.Errorf("expected exactly one stop callback, got %d", rec.stops)
	}
	if rec.analytics.DurationSeconds != 3.0 {
		t.Errorf("expected 3s recorded at auto-stop, got %v", rec.analytics.DurationSeconds)
	}
}

func TestVADDisabledNeverAutoStops(t *testing.T) {
	cfg := testConfig()
	cfg.EnableVAD = false
	cfg.MaxDuration = time.Minute

	src := &fakeSource{stream: &fakeStream{failAt: -1, frames: script(seg(0.0, 100))}}
	rec := &recorded{}
	e := newTestEngine(t, cfg, src, rec)
	startRecording(t, e)

	tickN(e, 100)
	if got := e.State(); got != StateRecording {
		t.Errorf("silence stopped a VAD-disabled recording: %v", got)
	}
	if rec.stops != 0 {
		t.Errorf("unexpected stop callbacks: %d", rec.stops)
	}
}

func TestPauseExcludesElapsedTime(t *testing.T) {
	// scenario: record 1s, pause, resume, record 1s more
	src := &fakeSource{stream: &fakeStream{failAt: -1, frames: script(seg(0.5, 100))}}
	rec := &recorded{}
	e := newTestEngine(t, testConfig(), src, rec)
	startRecording(t, e)

	tickN(e, 10)
	if err := e.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	tickN(e, 30) // paused ticks: frames discarded, clock frozen
	if got := e.ElapsedSeconds(); got != 1.0 {
		t.Errorf("elapsed advanced while paused: %v", got)
	}

	if err := e.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	tickN(e, 10)
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if rec.analytics.DurationSeconds != 2.0 {
		t.Errorf("expected 2s recorded excluding the pause, got %v", rec.analytics.DurationSeconds)
	}
}

func TestInvalidTransitionsAreNoOps(t *testing.T) {
	src := &fakeSource{stream: &fakeStream{failAt: -1}}
	rec := &recorded{}
	e := newTestEngine(t, testConfig(), src, rec)

	// idle: nothing to pause, resume or stop
	for name, fn := range map[string]func() error{
		"Pause":  e.Pause,
		"Resume": e.Resume,
		"Stop":   e.Stop,
	} {
		if err := fn(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s while idle: expected ErrInvalidTransition, got %v", name, err)
		}
		if got := e.State(); got != StateIdle {
			t.Errorf("%s while idle changed state to %v", name, got)
		}
	}

	startRecording(t, e)
	tickN(e, 10)

	// resume while already recording
	if err := e.Resume(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Resume while recording: expected ErrInvalidTransition, got %v", err)
	}
	if got := e.State(); got != StateRecording {
		t.Errorf("Resume while recording changed state to %v", got)
	}
	if got := e.ElapsedSeconds(); got != 1.0 {
		t.Errorf("no-op calls altered elapsed time: %v", got)
	}

	// start while recording
	if err := e.Start(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Start while recording: expected ErrInvalidTransition, got %v", err)
	}
}

func TestStopReleasesStream(t *testing.T) {
	stream := &fakeStream{failAt: -1}
	src := &fakeSource{stream: stream}
	rec := &recorded{}
	e := newTestEngine(t, testConfig(), src, rec)
	startRecording(t, e)
	tickN(e, 5)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if stream.Active() {
		t.Error("stream still active after Stop")
	}

	// Stop again is a no-op, not a second stop
	if err := e.Stop(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Stop: expected ErrInvalidTransition, got %v", err)
	}
	if rec.stops != 1 {
		t.Errorf("expected exactly one stop callback, got %d", rec.stops)
	}
}

func TestResetMidRecording(t *testing.T) {
	// scenario: reset during an active recording discards everything
	stream := &fakeStream{failAt: -1, frames: script(seg(0.5, 100))}
	src := &fakeSource{stream: stream}
	rec := &recorded{}
	e := newTestEngine(t, testConfig(), src, rec)
	startRecording(t, e)
	tickN(e, 10)

	e.Reset()

	if got := e.State(); got != StateIdle {
		t.Errorf("expected idle after reset, got %v", got)
	}
	if stream.Active() {
		t.Error("stream still active after reset")
	}
	if rec.stops != 0 {
		t.Errorf("reset must not produce a stop callback, got %d", rec.stops)
	}
	if _, _, ok := e.Last(); ok {
		t.Error("reset must discard the retained artifact")
	}

	// stale ticks from a torn-down loop must do nothing
	tickN(e, 5)
	if got := e.State(); got != StateIdle {
		t.Errorf("stale tick changed state to %v", got)
	}
}

// blockingSource holds the acquisition open until released, standing in
// for a permission prompt the user has not answered yet
type blockingSource struct {
	stream  *fakeStream
	waiting chan struct{}
	release chan struct{}
}

func (b *blockingSource) Name() string               { return "blocking" }
func (b *blockingSource) Ping(context.Context) error { return nil }
func (b *blockingSource) Acquire(ctx context.Context, _ capture.Constraints) (capture.Stream, error) {
	close(b.waiting)
	<-b.release
	return b.stream, nil
}

func TestResetDuringPermissionPrompt(t *testing.T) {
	// the user resets while the permission prompt is still open, then
	// grants the microphone anyway; the late grant must not arm the
	// engine or leave the device open
	stream := &fakeStream{failAt: -1}
	src := &blockingSource{
		stream:  stream,
		waiting: make(chan struct{}),
		release: make(chan struct{}),
	}
	rec := &recorded{}
	e := newTestEngine(t, testConfig(), src, rec)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(context.Background()) }()

	<-src.waiting
	if got := e.State(); got != StateAwaitingPermission {
		t.Fatalf("expected awaiting_permission during the prompt, got %v", got)
	}

	e.Reset()
	close(src.release)

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the acquisition to report cancellation, got %v", err)
	}
	if got := e.State(); got != StateIdle {
		t.Errorf("expected idle after reset overrode the grant, got %v", got)
	}
	if stream.Active() {
		t.Error("stream granted after reset must be closed")
	}
	if rec.starts != 0 {
		t.Errorf("no start callback may fire for a reset acquisition, got %d", rec.starts)
	}
}

func TestResetDiscardsBufferedEvents(t *testing.T) {
	cfg := testConfig()
	cfg.ShowTimer = true

	src := &fakeSource{stream: &fakeStream{failAt: -1, frames: script(seg(0.5, 10))}}
	rec := &recorded{}
	e := newTestEngine(t, cfg, src, rec)
	startRecording(t, e)
	tickN(e, 3)
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// started, telemetry and stopped events are still buffered
	e.Reset()

	select {
	case ev := <-e.Events():
		t.Errorf("stale event %q readable after reset", ev.Type)
	default:
	}
}

func TestDeviceErrorForcesBestEffortStop(t *testing.T) {
	// the device disappears at tick 8; the first 8 ticks must survive
	stream := &fakeStream{failAt: 8, frames: script(seg(0.5, 100))}
	src := &fakeSource{stream: stream}
	rec := &recorded{}
	e := newTestEngine(t, testConfig(), src, rec)
	startRecording(t, e)

	tickN(e, 9)
	if got := e.State(); got != StateStopped {
		t.Fatalf("expected forced stop on device failure, got %v", got)
	}
	if rec.stops != 1 {
		t.Fatalf("expected exactly one stop callback, got %d", rec.stops)
	}

	// raw PCM artifact: 8 frames of 160 samples, 2 bytes each
	if want := 8 * 160 * 2; len(rec.artifact.Data) != want {
		t.Errorf("best-effort artifact: expected %d bytes, got %d", want, len(rec.artifact.Data))
	}
	if rec.analytics.DurationSeconds != 0.8 {
		t.Errorf("expected 0.8s captured before the failure, got %v", rec.analytics.DurationSeconds)
	}
	if stream.Active() {
		t.Error("stream still active after device failure")
	}
}

func TestAnalyticsRatiosAreComplementary(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDuration = time.Minute

	src := &fakeSource{stream: &fakeStream{failAt: -1, frames: script(seg(0.5, 7), seg(0.01, 3))}}
	rec := &recorded{}
	e := newTestEngine(t, cfg, src, rec)
	startRecording(t, e)
	tickN(e, 10)
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	sum := rec.analytics.SilenceRatio + rec.analytics.VoiceActivityRatio
	if sum < 0.999999 || sum > 1.000001 {
		t.Errorf("silence and voice ratios must sum to 1, got %v", sum)
	}
	if rec.analytics.SilenceRatio != 0.3 {
		t.Errorf("expected silence ratio 0.3, got %v", rec.analytics.SilenceRatio)
	}
	if rec.analytics.MaxLevel < 0.49 || rec.analytics.MaxLevel > 0.51 {
		t.Errorf("expected max level ~0.5, got %v", rec.analytics.MaxLevel)
	}
}

func TestStoppedRequiresResetBeforeRestart(t *testing.T) {
	src := &fakeSource{stream: &fakeStream{failAt: -1}}
	rec := &recorded{}
	e := newTestEngine(t, testConfig(), src, rec)
	startRecording(t, e)
	tickN(e, 2)
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if err := e.Start(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Start from stopped: expected ErrInvalidTransition, got %v", err)
	}

	e.Reset()
	src.stream = &fakeStream{failAt: -1}
	startRecording(t, e)
	if rec.starts != 2 {
		t.Errorf("expected a second start callback after reset, got %d", rec.starts)
	}
}

func TestEventChannelSequence(t *testing.T) {
	cfg := testConfig()
	cfg.ShowTimer = true
	cfg.ShowQualityMeter = true

	src := &fakeSource{stream: &fakeStream{failAt: -1, frames: script(seg(0.5, 10))}}
	rec := &recorded{}
	e := newTestEngine(t, cfg, src, rec)
	startRecording(t, e)
	tickN(e, 3)
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	var types []EventType
drain:
	for {
		select {
		case ev := <-e.Events():
			types = append(types, ev.Type)
		default:
			break drain
		}
	}

	want := []EventType{EventStarted, EventTelemetry, EventTelemetry, EventTelemetry, EventStopped}
	if len(types) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %v, got %v", i, want[i], types[i])
		}
	}
}

func TestTelemetrySuppressedWithoutToggles(t *testing.T) {
	src := &fakeSource{stream: &fakeStream{failAt: -1, frames: script(seg(0.5, 10))}}
	rec := &recorded{}
	e := newTestEngine(t, testConfig(), src, rec)
	startRecording(t, e)
	tickN(e, 5)

	for {
		select {
		case ev := <-e.Events():
			if ev.Type == EventTelemetry {
				t.Fatal("telemetry emitted although every toggle is off")
			}
		default:
			return
		}
	}
}
