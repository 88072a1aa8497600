// Package portaudio provides a capture backend on top of PortAudio.
// It is the preferred backend on hosts where the PortAudio runtime is
// installed; the malgo backend covers the rest.
package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/aiexaminer/recorder-engine/internal/capture"
)

func init() {
	capture.Register(func() (capture.Source, error) {
		return NewSource()
	})
}

// Source opens microphone streams through PortAudio's default input device
type Source struct{}

var _ capture.Source = (*Source)(nil)

// NewSource initializes the PortAudio runtime
func NewSource() (*Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Source{}, nil
}

// Name implements capture.Source
func (*Source) Name() string { return "portaudio" }

// Ping implements capture.Source by checking for a default input device
func (*Source) Ping(ctx context.Context) error {
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		return fmt.Errorf("portaudio: no default input device: %w", err)
	}
	return nil
}

// Acquire implements capture.Source. PortAudio has no separate permission
// prompt; open failures are mapped onto capture.ErrPermissionDenied so the
// engine treats them as retryable.
func (*Source) Acquire(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame := make([]int16, c.FrameSize()*c.Channels)
	stream, err := portaudio.OpenDefaultStream(c.Channels, 0, float64(c.SampleRate), len(frame)/c.Channels, frame)
	if err != nil {
		return nil, fmt.Errorf("%w: portaudio open: %v", capture.ErrPermissionDenied, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: portaudio start: %v", capture.ErrPermissionDenied, err)
	}

	// Echo cancellation, AGC and noise suppression hints are not
	// controllable through the PortAudio API; whatever the device driver
	// applies is what we get.
	return &recordStream{stream: stream, frame: frame}, nil
}

// recordStream wraps an open PortAudio input stream. ReadFrame performs a
// blocking device read of exactly one frame.
type recordStream struct {
	stream *portaudio.Stream
	frame  []int16

	mu     sync.Mutex
	closed bool
}

func (s *recordStream) ReadFrame() ([]int16, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, capture.ErrStreamClosed
	}
	s.mu.Unlock()

	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("portaudio read: %w", err)
	}

	out := make([]int16, len(s.frame))
	copy(out, s.frame)
	return out, nil
}

func (s *recordStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *recordStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.stream.Stop()
	return s.stream.Close()
}
