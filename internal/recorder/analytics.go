package recorder

// AudioAnalytics is the summary produced once per completed recording,
// alongside the artifact, from the same sample history.
type AudioAnalytics struct {
	DurationSeconds    float64 `json:"duration_seconds"`
	AverageLevel       float64 `json:"average_level"`
	MaxLevel           float64 `json:"max_level"`
	SilenceRatio       float64 `json:"silence_ratio"`
	VoiceActivityRatio float64 `json:"voice_activity_ratio"`
	QualityScore       float64 `json:"quality_score"`
}

// Quality score constants inherited from the exam-practice UI: a fixed
// high score for any non-empty recording, a fixed mid score otherwise.
// A real aggregate of the per-tick quality snapshots would be better;
// kept as-is for behavioral parity with the stored session records.
const (
	qualityScoreRecorded = 0.85
	qualityScoreEmpty    = 0.5
)

// Summarize reduces a completed recording's level history to its summary.
// Pure function: it never mutates the history.
func Summarize(history []float64, durationSeconds, silenceThreshold float64) AudioAnalytics {
	a := AudioAnalytics{
		DurationSeconds: durationSeconds,
		QualityScore:    qualityScoreEmpty,
	}
	if len(history) == 0 {
		a.VoiceActivityRatio = 1 - a.SilenceRatio
		return a
	}

	var sum float64
	silent := 0
	for _, level := range history {
		sum += level
		if level > a.MaxLevel {
			a.MaxLevel = level
		}
		if level < silenceThreshold {
			silent++
		}
	}

	a.AverageLevel = sum / float64(len(history))
	a.SilenceRatio = float64(silent) / float64(len(history))
	a.VoiceActivityRatio = 1 - a.SilenceRatio
	a.QualityScore = qualityScoreRecorded
	return a
}
