package stt

import "context"

// Result is the transcription of one finished recording artifact
type Result struct {
	// Text is the transcribed text
	Text string

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64

	// DurationSeconds is the audio duration the service reports
	DurationSeconds float64
}

// Transcriber turns a finished artifact into text. The recording engine
// never calls this; consumers do, after the stop event hands them the
// artifact.
type Transcriber interface {
	// Transcribe uploads one encoded audio buffer and returns its transcript
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error)

	// Close releases the client
	Close() error
}
