package stt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	restv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/aiexaminer/recorder-engine/internal/config"
	"github.com/aiexaminer/recorder-engine/internal/observability"
	"github.com/aiexaminer/recorder-engine/internal/resilience"
)

// DeepgramClient implements Transcriber against Deepgram's pre-recorded
// REST API. Artifacts are short (bounded by the recording ceiling), so a
// single upload per recording beats holding a streaming session open.
type DeepgramClient struct {
	config         *config.Config
	client         *restv1api.Client
	circuitBreaker *resilience.CircuitBreaker
	log            zerolog.Logger
}

var _ Transcriber = (*DeepgramClient)(nil)

// NewDeepgramClient creates a pre-recorded transcription client
func NewDeepgramClient(cfg *config.Config, log zerolog.Logger) *DeepgramClient {
	rest := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})

	return &DeepgramClient{
		config: cfg,
		client: restv1api.New(rest),
		circuitBreaker: resilience.NewCircuitBreaker(
			"deepgram",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		log: log.With().Str("component", "stt").Logger(),
	}
}

// Transcribe implements Transcriber. The upload is retried with backoff
// behind a circuit breaker; a transcript is never required for the
// recording itself to succeed, so callers treat errors as degradation.
func (d *DeepgramClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("stt: empty audio buffer")
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.config.DeepgramModel,
		Language:    d.config.DeepgramLanguage,
		Punctuate:   true,
		SmartFormat: true,
	}

	start := time.Now()
	var result *Result
	err := d.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, func() error {
			res, err := d.client.FromStream(ctx, bytes.NewReader(audio), options)
			if err != nil {
				return fmt.Errorf("deepgram upload: %w", err)
			}

			if len(res.Results.Channels) == 0 || len(res.Results.Channels[0].Alternatives) == 0 {
				return fmt.Errorf("deepgram returned no transcription alternatives")
			}

			alt := res.Results.Channels[0].Alternatives[0]
			result = &Result{
				Text:            alt.Transcript,
				Confidence:      alt.Confidence,
				DurationSeconds: res.Metadata.Duration,
			}
			return nil
		}, d.retryConfig(), resilience.IsRetryableTranscriptionError)
	})

	observability.RecordTranscription(start, err == nil)
	observability.UpdateCircuitBreakerState("deepgram", int(d.circuitBreaker.State()))
	if err != nil {
		observability.RecordError("transcription", "stt")
		d.log.Warn().Err(err).Str("mime_type", mimeType).Msg("transcription failed")
		return nil, err
	}

	d.log.Debug().
		Float64("confidence", result.Confidence).
		Float64("audio_s", result.DurationSeconds).
		Dur("took", time.Since(start)).
		Msg("artifact transcribed")
	return result, nil
}

func (d *DeepgramClient) retryConfig() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:       d.config.RetryMaxAttempts,
		InitialBackoff:    time.Duration(d.config.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Close implements Transcriber
func (d *DeepgramClient) Close() error {
	return nil
}
