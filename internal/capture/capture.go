package capture

import (
	"context"
	"errors"
	"time"
)

// FrameDuration is the length of one capture frame. The sampling loop
// pulls one frame per tick, so this also defines the tick granularity
// of the analysis pipeline.
const FrameDuration = 100 * time.Millisecond

// Constraints carries the capture hints requested by the recorder
// configuration. Backends apply what the device supports and silently
// ignore the rest.
type Constraints struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	AutoGainControl  bool
	NoiseSuppression bool
}

// FrameSize returns the number of samples per channel in one frame
func (c Constraints) FrameSize() int {
	return c.SampleRate / int(time.Second/FrameDuration)
}

// ErrPermissionDenied is returned when the microphone cannot be opened,
// either because access was refused or because no input device exists.
// It is recoverable: the caller may fix the environment and retry.
var ErrPermissionDenied = errors.New("capture: microphone access denied or no input device")

// ErrStreamClosed is returned by ReadFrame after the stream has been released
var ErrStreamClosed = errors.New("capture: stream is closed")

// Stream is an exclusive handle on an open microphone stream. Exactly one
// recording session owns a stream at a time; the analysis pipeline and the
// encoder only see frames the owning session hands them.
type Stream interface {
	// ReadFrame returns the next frame of interleaved int16 samples.
	// It blocks until a full frame is available or the stream fails.
	ReadFrame() ([]int16, error)

	// Active reports whether the underlying device tracks are still open
	Active() bool

	// Close stops the device tracks and releases the stream. It is
	// idempotent and must be called on every exit path.
	Close() error
}

// Source opens microphone streams on a particular audio backend
type Source interface {
	// Name identifies the backend, e.g. "portaudio" or "malgo"
	Name() string

	// Ping checks that the backend can see an input device without
	// holding it open
	Ping(ctx context.Context) error

	// Acquire requests exclusive access to the default input device.
	// It may block for an externally-determined duration (permission
	// prompts, device warm-up); honor ctx cancellation.
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}
