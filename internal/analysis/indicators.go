package analysis

// VolumeIndicator grades the current input level for live telemetry
type VolumeIndicator string

// NoiseIndicator grades the estimated background noise for live telemetry
type NoiseIndicator string

// ClarityIndicator grades the estimated voice clarity for live telemetry
type ClarityIndicator string

const (
	VolumePoor      VolumeIndicator = "poor"
	VolumeFair      VolumeIndicator = "fair"
	VolumeGood      VolumeIndicator = "good"
	VolumeExcellent VolumeIndicator = "excellent"

	NoiseHigh   NoiseIndicator = "high"
	NoiseMedium NoiseIndicator = "medium"
	NoiseLow    NoiseIndicator = "low"

	ClarityPoor      ClarityIndicator = "poor"
	ClarityFair      ClarityIndicator = "fair"
	ClarityGood      ClarityIndicator = "good"
	ClarityExcellent ClarityIndicator = "excellent"
)

// Indicators is the coarse quality grading shown next to the live level
// meter. It has no effect on recording behavior.
type Indicators struct {
	Volume  VolumeIndicator  `json:"volume"`
	Noise   NoiseIndicator   `json:"noise"`
	Clarity ClarityIndicator `json:"clarity"`
}

// GradeIndicators maps a snapshot's level and quality score onto the
// three telemetry grades. The thresholds are tunable policy; they are
// kept as-is for behavioral compatibility with the exam-practice UI.
func GradeIndicators(level, quality float64) Indicators {
	var ind Indicators

	switch {
	case level < 0.1:
		ind.Volume = VolumePoor
	case level < 0.3:
		ind.Volume = VolumeFair
	case level > 0.8:
		ind.Volume = VolumeExcellent
	default:
		ind.Volume = VolumeGood
	}

	switch {
	case quality < 0.3:
		ind.Noise = NoiseHigh
	case quality < 0.6:
		ind.Noise = NoiseMedium
	default:
		ind.Noise = NoiseLow
	}

	switch {
	case quality < 0.4:
		ind.Clarity = ClarityPoor
	case quality < 0.6:
		ind.Clarity = ClarityFair
	case quality > 0.8:
		ind.Clarity = ClarityExcellent
	default:
		ind.Clarity = ClarityGood
	}

	return ind
}
