// sim/spingroup.go
//
// Default spin-state implementation: hard-pulse RF rotations and closed-form
// free precession with T1/T2 relaxation. One SpinGroup models the net
// magnetization of all spins sharing a spatial location.

package sim

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/blochsim/blochsim/sim/phantom"
)

// SpinGroup is the default spin state. It starts at thermal equilibrium,
// magnetization along +z with unit magnitude; proton density scales the
// recorded signal, not the vector.
type SpinGroup struct {
	Loc    r3.Vec
	Params phantom.TissueParams
	Df     float64

	M      r3.Vec
	signal []complex128
}

// NewSpinGroup builds a spin group at the given location with off-resonance
// df in Hz.
func NewSpinGroup(loc r3.Vec, params phantom.TissueParams, df float64) *SpinGroup {
	return &SpinGroup{
		Loc:    loc,
		Params: params,
		Df:     df,
		M:      r3.Vec{Z: 1},
	}
}

// Advance evolves the state through a field-free interval: off-resonance
// precession plus relaxation.
func (sg *SpinGroup) Advance(duration float64) error {
	if duration < 0 {
		return fmt.Errorf("negative duration %g", duration)
	}
	sg.precess([3]float64{}, duration)
	return nil
}

// PrecessUnderGradient evolves the state through a gradient interval given
// its net per-axis area in T*s/m.
func (sg *SpinGroup) PrecessUnderGradient(area [3]float64, duration float64) error {
	if duration < 0 {
		return fmt.Errorf("negative duration %g", duration)
	}
	sg.precess(area, duration)
	return nil
}

// precess rotates the transverse magnetization clockwise about +z by
// phi = 2*pi*(gamma_bar*(area . loc) + df*t) and applies exponential
// relaxation toward equilibrium. A non-positive T1 or T2 disables that
// relaxation channel.
func (sg *SpinGroup) precess(area [3]float64, duration float64) {
	phi := 2 * math.Pi * (GammaBar*(area[0]*sg.Loc.X+area[1]*sg.Loc.Y+area[2]*sg.Loc.Z) + sg.Df*duration)
	c, s := math.Cos(phi), math.Sin(phi)
	e1 := relaxation(sg.Params.T1, duration)
	e2 := relaxation(sg.Params.T2, duration)

	mx := e2 * (c*sg.M.X + s*sg.M.Y)
	my := e2 * (-s*sg.M.X + c*sg.M.Y)
	mz := e1*sg.M.Z + (1 - e1)
	sg.M = r3.Vec{X: mx, Y: my, Z: mz}
}

func relaxation(t, duration float64) float64 {
	if t <= 0 {
		return 1
	}
	return math.Exp(-duration / t)
}

// ApplyRF plays the B1 waveform under the hard-pulse approximation: each
// raster step rotates the magnetization by -gamma*|B_eff|*dt about the
// effective field. Relaxation within the pulse is neglected.
func (sg *SpinGroup) ApplyRF(b1 []complex128, grad [3][]float64, raster float64) error {
	if err := checkRFShapes(b1, grad); err != nil {
		return err
	}
	for v := range b1 {
		bx := real(b1[v])
		by := imag(b1[v])
		bz := grad[0][v]*sg.Loc.X + grad[1][v]*sg.Loc.Y + grad[2][v]*sg.Loc.Z + sg.Df/GammaBar
		b := math.Sqrt(bx*bx + by*by + bz*bz)
		if b == 0 {
			continue
		}
		axis := r3.Scale(1/b, r3.Vec{X: bx, Y: by, Z: bz})
		sg.M = r3.NewRotation(-Gamma*b*raster, axis).Rotate(sg.M)
	}
	return nil
}

func checkRFShapes(b1 []complex128, grad [3][]float64) error {
	for axis := 0; axis < 3; axis++ {
		if len(grad[axis]) < len(b1) {
			return fmt.Errorf("%s has %d samples, rf has %d", axisLabel(axis), len(grad[axis]), len(b1))
		}
	}
	return nil
}

// Sample runs a readout window. The state first precesses through the ADC
// delay under the grid's leading gradient amplitude, then alternates
// recording a signal value and precessing one dwell under the amplitude at
// the current grid sample. When the quota outlasts the grid the final
// column is held, which makes a gradient-free FID produce its full sample
// count.
func (sg *SpinGroup) Sample(ro *Readout) error {
	n := len(ro.Timing)
	if n == 0 {
		return fmt.Errorf("readout has an empty time grid")
	}
	for axis := 0; axis < 3; axis++ {
		if len(ro.Grad[axis]) != n {
			return fmt.Errorf("%s has %d samples, grid has %d", axisLabel(axis), len(ro.Grad[axis]), n)
		}
	}

	var lead [3]float64
	for axis := range lead {
		lead[axis] = ro.Grad[axis][0] * ro.Delay
	}
	sg.precess(lead, ro.Delay)

	receiver := cmplx.Exp(complex(0, -ro.Phase))
	recorded := 0
	for v := 1; v < n || recorded < ro.Samples; v++ {
		if recorded < ro.Samples {
			sg.signal = append(sg.signal, sg.transverse()*receiver)
			recorded++
		}
		i := v
		if i > n-1 {
			i = n - 1
		}
		var area [3]float64
		for axis := range area {
			area[axis] = ro.Grad[axis][i] * ro.Dwell
		}
		sg.precess(area, ro.Dwell)
	}
	return nil
}

// transverse returns the observable signal value PD*(Mx + i*My).
func (sg *SpinGroup) transverse() complex128 {
	return complex(sg.Params.PD*sg.M.X, sg.Params.PD*sg.M.Y)
}

// Magnetization returns the current magnetization vector.
func (sg *SpinGroup) Magnetization() r3.Vec { return sg.M }

// Signal returns every sample recorded so far, in acquisition order. The
// slice aliases the group's buffer and grows on the next Sample.
func (sg *SpinGroup) Signal() []complex128 { return sg.signal }
