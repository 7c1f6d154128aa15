package validate

import (
	"math"
	"math/cmplx"

	"github.com/madelynnblue/go-dsp/fft"
)

// DominantFrequency returns the frequency in Hz of the strongest spectral
// peak of samples, refined by parabolic interpolation between bins. It
// returns 0 for empty input.
func DominantFrequency(samples []float32, rate int) float64 {
	n := len(samples)
	if n < 2 || rate <= 0 {
		return 0
	}

	x := make([]float64, n)
	for i, v := range samples {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		x[i] = float64(v) * w
	}
	spec := fft.FFTReal(x)

	half := n/2 + 1
	mag := make([]float64, half)
	peak := 1
	for k := 1; k < half; k++ {
		mag[k] = cmplx.Abs(spec[k])
		if mag[k] > mag[peak] {
			peak = k
		}
	}
	if mag[peak] == 0 {
		return 0
	}

	offset := 0.0
	if peak > 0 && peak < half-1 {
		a, b, c := mag[peak-1], mag[peak], mag[peak+1]
		if denom := a - 2*b + c; denom != 0 {
			offset = 0.5 * (a - c) / denom
		}
	}
	return (float64(peak) + offset) * float64(rate) / float64(n)
}
