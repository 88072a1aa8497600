package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recording metrics
	activeRecordings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_active_recordings",
		Help: "Number of recordings currently in progress",
	})

	recordingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_recordings_total",
		Help: "Total number of recordings started",
	})

	recordingsStopped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_recordings_stopped_total",
		Help: "Total number of recordings stopped, by reason",
	}, []string{"reason"}) // requested, silence, max_duration, device_error

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recorder_recording_duration_seconds",
		Help:    "Duration of finished recordings in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	silenceRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recorder_silence_ratio",
		Help:    "Fraction of silent ticks in finished recordings",
		Buckets: []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1.0},
	})

	permissionDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_permission_denials_total",
		Help: "Total number of failed microphone acquisitions",
	})

	// Gateway session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recorder_gateway_active_sessions",
		Help: "Number of connected gateway sessions",
	})

	sessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_gateway_sessions_total",
		Help: "Total number of gateway sessions accepted",
	})

	artifactBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_artifact_bytes_total",
		Help: "Total encoded artifact bytes produced",
	})

	// Transcription metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_transcription_requests_total",
		Help: "Total number of transcription uploads",
	}, []string{"status"})

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recorder_transcription_latency_seconds",
		Help:    "Transcription upload latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Playback metrics
	playbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_playbacks_total",
		Help: "Total number of artifact playbacks",
	}, []string{"status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorder_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "recorder_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// RecordSessionStart records a new gateway session
func RecordSessionStart() {
	activeSessions.Inc()
	sessionsTotal.Inc()
}

// RecordSessionEnd records a gateway session closing
func RecordSessionEnd() {
	activeSessions.Dec()
}

// RecordRecordingStart records a recording entering the Recording state
func RecordRecordingStart() {
	activeRecordings.Inc()
	recordingsTotal.Inc()
}

// RecordRecordingStop records a finished recording and its summary
func RecordRecordingStop(reason string, durationSeconds, silence float64, artifactSize int) {
	activeRecordings.Dec()
	recordingsStopped.WithLabelValues(reason).Inc()
	recordingDuration.Observe(durationSeconds)
	silenceRatio.Observe(silence)
	artifactBytes.Add(float64(artifactSize))
}

// RecordPermissionDenied records a failed microphone acquisition
func RecordPermissionDenied() {
	permissionDenials.Inc()
}

// RecordTranscription records one transcription upload and its latency
func RecordTranscription(start time.Time, success bool) {
	transcriptionLatency.Observe(time.Since(start).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	transcriptionRequests.WithLabelValues(status).Inc()
}

// RecordPlayback records one playback attempt
func RecordPlayback(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	playbacksTotal.WithLabelValues(status).Inc()
}

// RecordError records an error by type and component
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates the circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
