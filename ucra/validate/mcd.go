package validate

import (
	"math"
	"math/cmplx"

	"github.com/madelynnblue/go-dsp/fft"
	"github.com/openucra/ucra-go/ucra"
)

// MFCC analysis parameters.
const (
	FrameSize   = 1024
	HopSize     = 512
	MelFilters  = 26
	MFCCCoeffs  = 13
	melFloor    = 1e-10
	mcdConstant = 10 / math.Ln10
)

// MFCC returns one row of MFCCCoeffs coefficients per analysis frame of
// samples. Frames are FrameSize long, HopSize apart and Hamming windowed.
func MFCC(samples []float32, rate int) ([][]float64, error) {
	if rate <= 0 {
		return nil, ucra.NewError(ucra.ErrInvalidArgument, "validate", "mfcc").WithContext("rate", rate)
	}
	if len(samples) < FrameSize {
		return nil, ucra.NewError(ucra.ErrInvalidArgument, "validate", "mfcc").
			WithContext("samples", len(samples)).
			WithContext("reason", "shorter than one frame")
	}

	filters := melBank(rate)
	window := hamming(FrameSize)
	frames := (len(samples)-FrameSize)/HopSize + 1

	out := make([][]float64, frames)
	frame := make([]float64, FrameSize)
	logMel := make([]float64, MelFilters)
	for f := 0; f < frames; f++ {
		start := f * HopSize
		for i := range frame {
			frame[i] = float64(samples[start+i]) * window[i]
		}

		spec := fft.FFTReal(frame)
		power := make([]float64, FrameSize/2+1)
		for k := range power {
			m := cmplx.Abs(spec[k])
			power[k] = m * m
		}

		for m, weights := range filters {
			var sum float64
			for k, w := range weights {
				sum += w * power[k]
			}
			logMel[m] = math.Log(sum + melFloor)
		}
		out[f] = dct(logMel, MFCCCoeffs)
	}
	return out, nil
}

// MCD returns the mel-cepstral distortion of syn against ref in dB. The
// shorter sequence sets the frame count and frames are paired by
// proportional index. C0 is left out.
func MCD(ref, syn []float32, rate int) (float64, error) {
	a, err := MFCC(ref, rate)
	if err != nil {
		return 0, err
	}
	b, err := MFCC(syn, rate)
	if err != nil {
		return 0, err
	}

	n := min(len(a), len(b))
	var total float64
	for i := 0; i < n; i++ {
		ra := a[i*len(a)/n]
		rb := b[i*len(b)/n]
		var d float64
		for c := 1; c < MFCCCoeffs; c++ {
			diff := ra[c] - rb[c]
			d += diff * diff
		}
		total += math.Sqrt(d)
	}
	return mcdConstant * math.Sqrt2 * total / float64(n), nil
}

func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }

func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// melBank builds triangular filters from 0 Hz to Nyquist, indexed by FFT
// bin.
func melBank(rate int) [][]float64 {
	lo, hi := hzToMel(0), hzToMel(float64(rate)/2)
	edges := make([]float64, MelFilters+2)
	for i := range edges {
		edges[i] = melToHz(lo + (hi-lo)*float64(i)/float64(MelFilters+1))
	}

	bins := FrameSize/2 + 1
	bank := make([][]float64, MelFilters)
	for m := range bank {
		bank[m] = make([]float64, bins)
		left, center, right := edges[m], edges[m+1], edges[m+2]
		for k := 0; k < bins; k++ {
			freq := float64(k) * float64(rate) / FrameSize
			switch {
			case freq >= left && freq <= center && center > left:
				bank[m][k] = (freq - left) / (center - left)
			case freq > center && freq <= right && right > center:
				bank[m][k] = (right - freq) / (right - center)
			}
		}
	}
	return bank
}

func hamming(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// dct returns the first k DCT-II coefficients of in.
func dct(in []float64, k int) []float64 {
	n := float64(len(in))
	out := make([]float64, k)
	for i := range out {
		var sum float64
		for j, v := range in {
			sum += v * math.Cos(math.Pi*float64(i)*(2*float64(j)+1)/(2*n))
		}
		out[i] = sum
	}
	return out
}
