package encode

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVEncoder wraps the capture into a standard RIFF/WAVE container with
// 16-bit PCM payload.
type WAVEncoder struct{}

// MimeType implements Encoder
func (*WAVEncoder) MimeType() string { return MimeWAV }

// Encode implements Encoder
func (*WAVEncoder) Encode(samples []int16, sampleRate, channels int) ([]byte, error) {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	buf := &seekBuffer{}
	enc := wav.NewEncoder(buf, sampleRate, 16, channels, 1)
	err := enc.Write(&audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("wav encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav finalize: %w", err)
	}

	return buf.data, nil
}

// seekBuffer is a minimal in-memory io.WriteSeeker. The wav encoder needs
// seeking to patch the RIFF header lengths on Close, and the artifact must
// stay in memory, so neither bytes.Buffer nor a temp file fits.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(b.pos) + offset
	case io.SeekEnd:
		pos = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("seekBuffer: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("seekBuffer: negative position %d", pos)
	}
	b.pos = int(pos)
	return pos, nil
}
