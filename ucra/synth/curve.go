// Package synth implements the reference additive synthesizer: a step-hold
// curve sampler and the note mixing algorithm used by the reference engine.
package synth

import "github.com/openucra/ucra-go/ucra"

// SampleCurve returns the value of c held at time t. It picks the last point
// whose time is not after t; times before the first point use the first
// point. An empty curve yields fallback.
func SampleCurve(c ucra.Curve, t, fallback float64) float64 {
	if len(c) == 0 {
		return fallback
	}
	i := 0
	for i+1 < len(c) && c[i+1].Time <= t {
		i++
	}
	return c[i].Value
}
