// Package encode turns captured PCM sample buffers into the finished
// artifact handed to consumers. Encoders are negotiated by probing a
// preference-ordered list of MIME types, mirroring how the exam-practice
// frontend probed its host recorder formats.
package encode

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when none of the preferred MIME types
// has a registered encoder. Fatal for the recording attempt.
var ErrUnsupportedFormat = errors.New("encode: no supported output format")

// MIME types of the built-in encoders
const (
	MimeWAV = "audio/wav"
	MimePCM = "audio/pcm"
)

// DefaultPreferences is the probe order used when the caller does not
// express one. WAV first: every consumer of the artifact (playback,
// transcription upload) accepts it.
var DefaultPreferences = []string{MimeWAV, MimePCM}

// Encoder produces one encoded artifact from a complete PCM capture
type Encoder interface {
	// MimeType identifies the encoding this encoder produces
	MimeType() string

	// Encode wraps the interleaved samples into the final byte buffer
	Encode(samples []int16, sampleRate, channels int) ([]byte, error)
}

// Negotiate returns the first preferred MIME type with a registered
// encoder. An empty preference list means DefaultPreferences.
func Negotiate(preferences []string) (Encoder, error) {
	if len(preferences) == 0 {
		preferences = DefaultPreferences
	}

	for _, mime := range preferences {
		switch mime {
		case MimeWAV:
			return &WAVEncoder{}, nil
		case MimePCM:
			return &PCMEncoder{}, nil
		}
	}
	return nil, fmt.Errorf("%w: tried %v", ErrUnsupportedFormat, preferences)
}

// PCMEncoder emits raw interleaved little-endian signed 16-bit samples.
// The fallback when a consumer wants the bytes untouched.
type PCMEncoder struct{}

// MimeType implements Encoder
func (*PCMEncoder) MimeType() string { return MimePCM }

// Encode implements Encoder
func (*PCMEncoder) Encode(samples []int16, sampleRate, channels int) ([]byte, error) {
	return SamplesToBytes(samples), nil
}
