package analysis

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// Snapshot holds the per-tick analysis of one audio frame.
// All values are normalized to [0, 1].
type Snapshot struct {
	// Level is the RMS loudness of the frame
	Level float64

	// FrequencyBalance is the share of spectral energy in the mid band,
	// where speech energy concentrates
	FrequencyBalance float64

	// Quality is a mid-weighted composite of the band energies
	Quality float64
}

// Band edges as fractions of the usable spectrum (0..Nyquist).
// Low covers rumble and mains hum, mid covers the voice range,
// high covers sibilance and hiss.
const (
	lowBandEnd = 0.1
	midBandEnd = 0.5
)

// Band weights for the composite quality score. Mid-weighted because
// speech intelligibility lives in the mid band. These are policy
// constants, not physics; tune against real material.
const (
	lowWeight  = 0.2
	midWeight  = 0.6
	highWeight = 0.2
)

// Analyze computes the level, frequency balance and quality score of a
// single time-domain frame. It is a pure function of the frame contents
// and is intended to be called once per sampling tick.
func Analyze(samples []int16) Snapshot {
	if len(samples) == 0 {
		return Snapshot{}
	}

	level := RMSLevel(samples)
	low, mid, high := bandEnergies(samples)

	total := low + mid + high
	var balance float64
	if total > 0 {
		balance = mid / total
	}

	// Normalize against the loudest band so the score reflects the
	// spectral shape rather than the absolute volume.
	var quality float64
	if peak := math.Max(low, math.Max(mid, high)); peak > 0 {
		quality = (lowWeight*low + midWeight*mid + highWeight*high) / peak
	}
	if quality > 1 {
		quality = 1
	}

	return Snapshot{
		Level:            level,
		FrequencyBalance: balance,
		Quality:          quality,
	}
}

// RMSLevel calculates the root mean square of a frame, normalized to
// [0, 1] against the int16 full-scale amplitude.
func RMSLevel(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	level := math.Sqrt(sum/float64(len(samples))) / 32768.0
	if level > 1 {
		level = 1
	}
	return level
}

// bandEnergies partitions the frame's spectrum into low/mid/high bands
// and returns the mean magnitude of each band.
func bandEnergies(samples []int16) (low, mid, high float64) {
	input := make([]float64, len(samples))
	for i, sample := range samples {
		input[i] = float64(sample) / 32768.0
	}

	spectrum := fft.FFTReal(input)

	// Only the first half of the spectrum is meaningful for real input.
	bins := len(spectrum) / 2
	if bins == 0 {
		return 0, 0, 0
	}

	lowEnd := int(float64(bins) * lowBandEnd)
	midEnd := int(float64(bins) * midBandEnd)

	var lowSum, midSum, highSum float64
	var lowN, midN, highN int
	for i := 1; i < bins; i++ { // skip the DC bin
		mag := cmplxAbs(spectrum[i])
		switch {
		case i < lowEnd:
			lowSum += mag
			lowN++
		case i < midEnd:
			midSum += mag
			midN++
		default:
			highSum += mag
			highN++
		}
	}

	return mean(lowSum, lowN), mean(midSum, midN), mean(highSum, highN)
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
