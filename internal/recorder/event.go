package recorder

import (
	"github.com/aiexaminer/recorder-engine/internal/analysis"
)

// Artifact is the finalized encoded audio produced when a recording
// stops. Ownership transfers to the consumer when the stop event fires;
// the engine's own copy is discarded on Reset.
type Artifact struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
}

// StopReason records what ended a recording
type StopReason string

const (
	StopRequested   StopReason = "requested"
	StopSilence     StopReason = "silence"
	StopMaxDuration StopReason = "max_duration"
	StopDeviceError StopReason = "device_error"
)

// EventType discriminates engine events
type EventType string

const (
	// EventStarted fires once per recording, after the stream and the
	// sampling loop are active
	EventStarted EventType = "started"

	// EventTelemetry carries the optional per-tick live readings; not a
	// stable contract, and omitted entirely when no telemetry toggle is set
	EventTelemetry EventType = "telemetry"

	// EventStopped fires exactly once per recording, after the sampling
	// loop is torn down and the artifact and analytics are finalized
	EventStopped EventType = "stopped"
)

// Telemetry is the per-tick live reading for UI meters
type Telemetry struct {
	ElapsedSeconds float64              `json:"elapsed_seconds"`
	Level          float64              `json:"level"`
	SilenceRun     int                  `json:"silence_run"`
	Indicators     *analysis.Indicators `json:"indicators,omitempty"`
	Waveform       []float64            `json:"waveform,omitempty"`
}

// Event is one notification from the engine. Consumers read these from
// Events(); the Started/Stopped callbacks carry the same information for
// callers that prefer the callback shape.
type Event struct {
	Type      EventType       `json:"type"`
	Telemetry *Telemetry      `json:"telemetry,omitempty"`
	Artifact  *Artifact       `json:"artifact,omitempty"`
	Analytics *AudioAnalytics `json:"analytics,omitempty"`
	Reason    StopReason      `json:"reason,omitempty"`
}

// Callbacks are the optional notification hooks supplied by the consumer.
// Both are invoked from the engine's own goroutines with the state lock
// released, so they may call back into the engine; a recording is never
// restartable from inside its own stop callback without a Reset first.
type Callbacks struct {
	// OnRecordingStart fires once per recording, synchronously after
	// the loops are active
	OnRecordingStart func()

	// OnRecordingStop fires exactly once per recording with the
	// finished artifact and its analytics
	OnRecordingStop func(Artifact, AudioAnalytics)
}
