// Package playback plays finished recording artifacts back to the
// default output device. Playback is mutually exclusive with an active
// recording by contract: callers must not Play while the engine is
// Recording or Paused. The engine does not enforce this; the UI disables
// the control, as the exam-practice frontend does.
package playback

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/aiexaminer/recorder-engine/internal/encode"
	"github.com/aiexaminer/recorder-engine/internal/recorder"
)

// Controller owns the audio output context. oto allows only one context
// per process, so create a single Controller and reuse it.
type Controller struct {
	ctx *oto.Context
	log zerolog.Logger

	mu     sync.Mutex
	active *Handle
}

// NewController opens the output device at the given PCM parameters
func NewController(sampleRate, channels int, log zerolog.Logger) (*Controller, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("playback: open output: %w", err)
	}
	<-ready

	return &Controller{
		ctx: ctx,
		log: log.With().Str("component", "playback").Logger(),
	}, nil
}

// Play starts playing an artifact and returns a handle for it. A handle
// already playing is stopped first; one artifact plays at a time.
func (c *Controller) Play(a recorder.Artifact) (*Handle, error) {
	pcm, err := decodeArtifact(a)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.active != nil {
		c.active.Stop()
		c.active = nil
	}

	player := c.ctx.NewPlayer(bytes.NewReader(pcm))
	h := &Handle{player: player, done: make(chan struct{})}
	c.active = h
	c.mu.Unlock()

	player.Play()
	go h.watch()

	c.log.Debug().Int("pcm_bytes", len(pcm)).Str("mime_type", a.MimeType).Msg("playback started")
	return h, nil
}

// decodeArtifact unwraps the artifact into raw interleaved S16LE PCM
func decodeArtifact(a recorder.Artifact) ([]byte, error) {
	switch a.MimeType {
	case encode.MimePCM:
		return a.Data, nil
	case encode.MimeWAV:
		dec := wav.NewDecoder(bytes.NewReader(a.Data))
		buf, err := dec.FullPCMBuffer()
		if err != nil {
			return nil, fmt.Errorf("playback: decode wav: %w", err)
		}
		samples := make([]int16, len(buf.Data))
		for i, s := range buf.Data {
			samples[i] = int16(s)
		}
		return encode.SamplesToBytes(samples), nil
	default:
		return nil, fmt.Errorf("playback: unsupported artifact type %q", a.MimeType)
	}
}

// Handle is one playback in progress
type Handle struct {
	player *oto.Player

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// Done is closed when playback finishes or is stopped; the underlying
// player is released by then
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stop ends playback early and releases the player. Idempotent.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

func (h *Handle) stopLocked() {
	if h.stopped {
		return
	}
	h.stopped = true
	h.player.Close()
	close(h.done)
}

// watch polls for the natural end of playback and releases the player.
// oto has no completion callback; polling is how its own examples wait.
func (h *Handle) watch() {
	for {
		h.mu.Lock()
		if h.stopped {
			h.mu.Unlock()
			return
		}
		if !h.player.IsPlaying() {
			h.stopLocked()
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()
		time.Sleep(50 * time.Millisecond)
	}
}
