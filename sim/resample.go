// sim/resample.go
//
// Gradient resampling: turns the per-axis gradient records of a sequence
// block into a dense 3 x N waveform on a shared time grid, in Tesla/meter.
// The compiler calls this once per RF and ADC block; the per-location
// simulation then replays the arrays without touching the records again.

package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"

	"github.com/blochsim/blochsim/sim/sequence"
)

// GradKind labels the shape family of a resampled waveform.
type GradKind string

const (
	GradNone      GradKind = "none"
	GradTrap      GradKind = "trap"
	GradArbitrary GradKind = "grad"
)

// ResampleOptions selects the time grid. Exactly one of Raster or Timing
// must be set: Raster derives the grid from the block's own duration at dt
// spacing, Timing uses the caller's time points verbatim. Delay shifts the
// start of the derived grid and is only meaningful on the Raster path.
type ResampleOptions struct {
	Raster float64
	Timing []float64
	Delay  float64
}

// Waveform is the resampled 3-axis gradient. Rows follow the x, y, z axis
// order; every row has the same length as Timing. Kind reports the shape
// family of the last active axis, GradNone when the block has no gradient.
type Waveform struct {
	Grad     [3][]float64
	Timing   []float64
	Duration float64
	Kind     GradKind
}

// Resample interpolates the block's gradient records onto a shared grid.
// Inactive axes produce all-zero rows of the grid length.
func Resample(blk *sequence.Block, opts ResampleOptions) (*Waveform, error) {
	hasRaster := opts.Raster != 0
	hasTiming := len(opts.Timing) != 0
	if hasRaster == hasTiming {
		return nil, fmt.Errorf("resample: exactly one of raster and timing must be supplied")
	}
	if hasRaster && opts.Raster < 0 {
		return nil, fmt.Errorf("resample: raster must be positive, got %g", opts.Raster)
	}
	if opts.Delay < 0 {
		return nil, fmt.Errorf("resample: delay must be non-negative, got %g", opts.Delay)
	}

	var grid []float64
	var duration float64
	if hasRaster {
		duration = PrecessDuration(blk, opts.Raster)
		tail := arange(opts.Delay, duration+opts.Raster, opts.Raster)
		grid = make([]float64, 0, 1+len(tail))
		grid = append(grid, 0)
		grid = append(grid, tail...)
	} else {
		grid = append([]float64(nil), opts.Timing...)
		duration = grid[len(grid)-1] - grid[0]
	}

	wf := &Waveform{Timing: grid, Duration: duration, Kind: GradNone}
	mixed := false
	for axis := 0; axis < 3; axis++ {
		g := blk.Grad(axis)
		if g == nil {
			wf.Grad[axis] = make([]float64, len(grid))
			continue
		}
		xs, ys, err := gradientEnvelope(g)
		if err != nil {
			return nil, fmt.Errorf("resample %s: %w", axisLabel(axis), err)
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("resample %s: %w", axisLabel(axis), err)
		}
		row := make([]float64, len(grid))
		for i, t := range grid {
			row[i] = pl.Predict(t)
		}
		wf.Grad[axis] = row

		k := gradKind(g)
		if wf.Kind != GradNone && wf.Kind != k {
			mixed = true
		}
		wf.Kind = k
	}
	if mixed {
		logrus.Warnf("[Resample] block mixes trapezoid and sampled gradient axes; reported kind %q comes from the last active axis", wf.Kind)
	}
	return wf, nil
}

// TotalArea integrates each axis of the block's gradients, in T*s/m.
// Trapezoids use the closed form amplitude*(flat+(rise+fall)/2); sampled
// shapes use trapezoidal quadrature over their native time points.
func TotalArea(blk *sequence.Block) ([3]float64, error) {
	var area [3]float64
	for axis := range area {
		g := blk.Grad(axis)
		if g == nil {
			continue
		}
		switch g.Type {
		case sequence.TrapGradient:
			area[axis] = g.Amplitude * (g.FlatTime + (g.RiseTime+g.FallTime)/2) / GammaBar
		case sequence.ArbitraryGradient:
			if len(g.T) < 2 || len(g.T) != len(g.Waveform) {
				return area, fmt.Errorf("%s: sampled gradient needs matching t and waveform with at least 2 points", axisLabel(axis))
			}
			area[axis] = integrate.Trapezoidal(g.T, g.Waveform) / GammaBar
		default:
			return area, fmt.Errorf("%s: unknown gradient type %q", axisLabel(axis), g.Type)
		}
	}
	return area, nil
}

// PrecessDuration returns the longest intrinsic gradient duration across
// the block's axes: rise+flat+fall for a trapezoid, sample count times dt
// for a sampled shape. A block with no gradient has duration 0.
func PrecessDuration(blk *sequence.Block, dt float64) float64 {
	var longest float64
	for axis := 0; axis < 3; axis++ {
		g := blk.Grad(axis)
		if g == nil {
			continue
		}
		var d float64
		if g.Type == sequence.TrapGradient {
			d = g.RiseTime + g.FlatTime + g.FallTime
		} else {
			d = float64(len(g.T)) * dt
		}
		if d > longest {
			longest = d
		}
	}
	return longest
}

// gradientEnvelope returns the interpolation support of one gradient record
// in T/m. Trapezoid corner points falling on the same instant with the same
// amplitude (a zero-length segment) are collapsed; the same instant with
// different amplitudes would mean infinite slew and is rejected.
func gradientEnvelope(g *sequence.Gradient) ([]float64, []float64, error) {
	switch g.Type {
	case sequence.TrapGradient:
		amp := g.Amplitude / GammaBar
		ts := [4]float64{0, g.RiseTime, g.RiseTime + g.FlatTime, g.RiseTime + g.FlatTime + g.FallTime}
		ys := [4]float64{0, amp, amp, 0}
		xsOut := []float64{ts[0]}
		ysOut := []float64{ys[0]}
		for i := 1; i < len(ts); i++ {
			if ts[i] == xsOut[len(xsOut)-1] {
				if ys[i] == ysOut[len(ysOut)-1] {
					continue
				}
				return nil, nil, fmt.Errorf("trapezoid has coincident corners with different amplitudes")
			}
			xsOut = append(xsOut, ts[i])
			ysOut = append(ysOut, ys[i])
		}
		if len(xsOut) < 2 {
			return nil, nil, fmt.Errorf("trapezoid has zero duration")
		}
		return xsOut, ysOut, nil
	case sequence.ArbitraryGradient:
		xs := append([]float64(nil), g.T...)
		ys := make([]float64, len(g.Waveform))
		for i, v := range g.Waveform {
			ys[i] = v / GammaBar
		}
		return xs, ys, nil
	}
	return nil, nil, fmt.Errorf("unknown gradient type %q", g.Type)
}

func gradKind(g *sequence.Gradient) GradKind {
	if g.Type == sequence.TrapGradient {
		return GradTrap
	}
	return GradArbitrary
}

func axisLabel(axis int) string {
	switch axis {
	case 0:
		return "gx"
	case 1:
		return "gy"
	case 2:
		return "gz"
	}
	return "g?"
}

// arange mirrors numpy.arange: start, start+step, ... strictly below stop.
func arange(start, stop, step float64) []float64 {
	if step <= 0 || stop <= start {
		return nil
	}
	n := int(math.Ceil((stop - start) / step))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
