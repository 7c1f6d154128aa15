// Package validate holds the objective checks used by the golden tests:
// F0 error between pitch curves, PCM comparison against a reference
// render, and mel-cepstral distortion.
package validate

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/openucra/ucra-go/ucra"
)

// F0Step is the time grid used when comparing pitch curves.
const F0Step = 0.01

// F0Reference is the pitch that cent errors are measured against.
const F0Reference = 440.0

// F0Result summarizes the error between two pitch curves.
type F0Result struct {
	RMSEHz       float64 // Root mean square error in Hz
	RMSECents    float64 // Root mean square error in cents
	MeanErrorHz  float64 // Mean absolute error in Hz
	MaxErrorHz   float64 // Largest absolute error in Hz
	Points       int     // Grid points in the overlap
	VoicedPoints int     // Grid points voiced in both curves
}

// LoadCurve reads a pitch curve of "time hz" lines. Blank lines, lines
// starting with '#' and lines that do not hold two numbers are skipped.
func LoadCurve(r io.Reader) (ucra.Curve, error) {
	var c ucra.Curve
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		t, err1 := strconv.ParseFloat(fields[0], 64)
		hz, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		c = append(c, ucra.CurvePoint{Time: t, Value: hz})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(c) == 0 {
		return nil, ucra.NewError(ucra.ErrInvalidArgument, "validate", "load curve").WithContext("reason", "no data")
	}
	return c, nil
}

// LoadCurveFile reads a pitch curve from path.
func LoadCurveFile(path string) (ucra.Curve, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ucra.NewError(ucra.ErrFileNotFound, "validate", "load curve").WithContext("path", path)
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return LoadCurve(f)
}

// F0RMSE compares est against gt on a 10 ms grid over the time range both
// curves cover. Only points voiced in both curves count.
func F0RMSE(gt, est ucra.Curve) (F0Result, error) {
	var res F0Result
	if len(gt) == 0 || len(est) == 0 {
		return res, ucra.NewError(ucra.ErrInvalidArgument, "validate", "f0 rmse").WithContext("reason", "empty curve")
	}

	start := math.Max(gt[0].Time, est[0].Time)
	end := math.Min(gt[len(gt)-1].Time, est[len(est)-1].Time)
	if start >= end {
		return res, ucra.NewError(ucra.ErrInvalidArgument, "validate", "f0 rmse").WithContext("reason", "curves do not overlap")
	}

	res.Points = int((end-start)/F0Step) + 1

	var sumSq, sumAbs, sumCents float64
	for i := 0; i < res.Points; i++ {
		t := start + float64(i)*F0Step
		a := interpolate(gt, t)
		b := interpolate(est, t)
		if a <= 0 || b <= 0 {
			continue
		}
		diff := a - b
		sumSq += diff * diff
		sumAbs += math.Abs(diff)
		res.MaxErrorHz = math.Max(res.MaxErrorHz, math.Abs(diff))

		cents := cents(a) - cents(b)
		sumCents += cents * cents
		res.VoicedPoints++
	}

	if res.VoicedPoints == 0 {
		return res, ucra.NewError(ucra.ErrInvalidArgument, "validate", "f0 rmse").WithContext("reason", "no voiced points")
	}
	n := float64(res.VoicedPoints)
	res.RMSEHz = math.Sqrt(sumSq / n)
	res.MeanErrorHz = sumAbs / n
	res.RMSECents = math.Sqrt(sumCents / n)
	return res, nil
}

// String formats the result on one line.
func (r F0Result) String() string {
	return fmt.Sprintf("rmse=%.3f Hz (%.2f cents) mean=%.3f Hz max=%.3f Hz voiced=%d/%d",
		r.RMSEHz, r.RMSECents, r.MeanErrorHz, r.MaxErrorHz, r.VoicedPoints, r.Points)
}

// interpolate returns the linearly interpolated pitch at t, holding the end
// values outside the curve. A segment touching an unvoiced point is
// unvoiced.
func interpolate(c ucra.Curve, t float64) float64 {
	if t <= c[0].Time {
		return c[0].Value
	}
	last := c[len(c)-1]
	if t >= last.Time {
		return last.Value
	}
	for i := 0; i < len(c)-1; i++ {
		p, q := c[i], c[i+1]
		if t < p.Time || t > q.Time {
			continue
		}
		if p.Value <= 0 || q.Value <= 0 {
			return 0
		}
		alpha := (t - p.Time) / (q.Time - p.Time)
		return p.Value + alpha*(q.Value-p.Value)
	}
	return 0
}

func cents(hz float64) float64 {
	return 1200 * math.Log2(hz/F0Reference)
}
