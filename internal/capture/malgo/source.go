// Package malgo provides a capture backend on top of miniaudio (via
// gen2brain/malgo). miniaudio is self-contained, so this backend works on
// hosts without a separately installed audio runtime.
package malgo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/aiexaminer/recorder-engine/internal/capture"
	"github.com/aiexaminer/recorder-engine/internal/encode"
)

func init() {
	capture.Register(func() (capture.Source, error) {
		return NewSource()
	})
}

// Source opens microphone streams through miniaudio's default capture device
type Source struct {
	ctx *malgo.AllocatedContext
}

var _ capture.Source = (*Source)(nil)

// NewSource initializes a miniaudio context
func NewSource() (*Source, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo: init context: %w", err)
	}
	return &Source{ctx: mctx}, nil
}

// Name implements capture.Source
func (*Source) Name() string { return "malgo" }

// Ping implements capture.Source by enumerating capture devices
func (s *Source) Ping(ctx context.Context) error {
	infos, err := s.ctx.Devices(malgo.Capture)
	if err != nil {
		return fmt.Errorf("malgo: list devices: %w", err)
	}
	if len(infos) == 0 {
		return fmt.Errorf("malgo: no capture devices")
	}
	return nil
}

// Acquire implements capture.Source. The device pushes S16 chunks from its
// callback thread into a sample ring; ReadFrame drains the ring one frame
// at a time.
func (s *Source) Acquire(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(c.Channels)
	deviceConfig.SampleRate = uint32(c.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	// Hold ~1s of audio so a briefly stalled sampling loop loses nothing
	st := &recordStream{
		ring:      capture.NewSampleRing(c.SampleRate*c.Channels + 1),
		frameSize: c.FrameSize() * c.Channels,
	}

	onRecv := func(_, in []byte, _ uint32) {
		st.ring.Write(encode.BytesToSamples(in))
	}

	device, err := malgo.InitDevice(s.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return nil, fmt.Errorf("%w: malgo init device: %v", capture.ErrPermissionDenied, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("%w: malgo start device: %v", capture.ErrPermissionDenied, err)
	}

	st.device = device
	return st, nil
}

type recordStream struct {
	device    *malgo.Device
	ring      *capture.SampleRing
	frameSize int

	mu     sync.Mutex
	closed bool
}

// readPoll is how often ReadFrame re-checks the ring while waiting for a
// full frame to accumulate.
const readPoll = 5 * time.Millisecond

// deviceTimeout bounds how long ReadFrame waits before concluding the
// device has gone away mid-recording.
const deviceTimeout = 2 * time.Second

func (s *recordStream) ReadFrame() ([]int16, error) {
	deadline := time.Now().Add(deviceTimeout)
	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil, capture.ErrStreamClosed
		}

		if s.ring.Available() >= s.frameSize {
			out := make([]int16, s.frameSize)
			s.ring.Read(out)
			return out, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("malgo: no audio from device for %v", deviceTimeout)
		}
		time.Sleep(readPoll)
	}
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

	s.device.Stop()
	s.device.Uninit()
	s.ring.Clear()
	return nil
}
