package validate

import (
	"fmt"
	"math"

	"github.com/openucra/ucra-go/ucra"
)

// Pass thresholds for PCM comparison.
const (
	DefaultTolerance = 0.001 // Largest passing RMS difference
	PassSNR          = 60.0  // Smallest passing SNR in dB
	maxSNR           = 120.0
)

// Verdict is the outcome of a PCM comparison.
type Verdict int

// Verdicts.
const (
	Fail Verdict = iota
	Pass
	Identical
)

func (v Verdict) String() string {
	switch v {
	case Identical:
		return "identical"
	case Pass:
		return "pass"
	default:
		return "fail"
	}
}

// Comparison describes how far test is from ref.
type Comparison struct {
	RMS     float64 // RMS of the sample difference
	MaxDiff float64 // Largest absolute sample difference
	SNR     float64 // Reference power over difference power, dB
	Verdict Verdict
}

// String formats the comparison on one line.
func (c Comparison) String() string {
	return fmt.Sprintf("%s rms=%.6f max=%.6f snr=%.1f dB", c.Verdict, c.RMS, c.MaxDiff, c.SNR)
}

// ComparePCM compares test with ref using the default tolerance.
func ComparePCM(ref, test []float32) (Comparison, error) {
	return Compare(ref, test, DefaultTolerance)
}

// Compare compares test with ref. The buffers must be the same length.
// A result passes when its RMS difference is at most tolerance or its SNR
// reaches PassSNR.
func Compare(ref, test []float32, tolerance float64) (Comparison, error) {
	var c Comparison
	if len(ref) != len(test) {
		return c, ucra.NewError(ucra.ErrInvalidArgument, "validate", "compare").
			WithContext("ref", len(ref)).
			WithContext("test", len(test))
	}
	if len(ref) == 0 {
		c.SNR = maxSNR
		c.Verdict = Identical
		return c, nil
	}

	identical := true
	var signal, noise float64
	for i := range ref {
		if ref[i] != test[i] {
			identical = false
		}
		d := float64(ref[i]) - float64(test[i])
		noise += d * d
		signal += float64(ref[i]) * float64(ref[i])
		c.MaxDiff = math.Max(c.MaxDiff, math.Abs(d))
	}

	n := float64(len(ref))
	c.RMS = math.Sqrt(noise / n)
	if noise/n < 1e-12 {
		c.SNR = maxSNR
	} else {
		c.SNR = 10 * math.Log10((signal/n)/(noise/n))
	}

	switch {
	case identical:
		c.Verdict = Identical
	case c.RMS <= tolerance || c.SNR >= PassSNR:
		c.Verdict = Pass
	default:
		c.Verdict = Fail
	}
	return c, nil
}
