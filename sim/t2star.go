package sim

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/blochsim/blochsim/sim/phantom"
)

// DefaultEnsembleSize is the member count of a T2* ensemble when the config
// leaves it unset.
const DefaultEnsembleSize = 64

// EnsembleSpinGroup models T2* decay by averaging an ensemble of default
// spin groups whose off-resonance offsets are drawn from a Lorentzian
// (Cauchy) line. The half-width is 1/(2*pi*T2') with 1/T2' = 1/T2* - 1/T2,
// so the ensemble mean decays with the requested T2* while each member
// still relaxes with the tissue T2.
type EnsembleSpinGroup struct {
	members []*SpinGroup
	signal  []complex128
}

// NewEnsembleSpinGroup draws size member offsets from src. T2* must be
// positive and, when the tissue has a finite T2, strictly below it.
func NewEnsembleSpinGroup(loc r3.Vec, params phantom.TissueParams, df, t2star float64, size int, src rand.Source) (*EnsembleSpinGroup, error) {
	if t2star <= 0 {
		return nil, fmt.Errorf("t2_star must be positive, got %g", t2star)
	}
	if params.T2 > 0 && t2star >= params.T2 {
		return nil, fmt.Errorf("t2_star %g must be below t2 %g", t2star, params.T2)
	}
	if size < 1 {
		return nil, fmt.Errorf("ensemble size must be at least 1, got %d", size)
	}

	rate := 1 / t2star
	if params.T2 > 0 {
		rate -= 1 / params.T2
	}
	line := distuv.Cauchy{Mu: 0, Sigma: rate / (2 * math.Pi), Src: src}

	members := make([]*SpinGroup, size)
	for i := range members {
		members[i] = NewSpinGroup(loc, params, df+line.Rand())
	}
	return &EnsembleSpinGroup{members: members}, nil
}

func (eg *EnsembleSpinGroup) Advance(duration float64) error {
	for _, m := range eg.members {
		if err := m.Advance(duration); err != nil {
			return err
		}
	}
	return nil
}

func (eg *EnsembleSpinGroup) ApplyRF(b1 []complex128, grad [3][]float64, raster float64) error {
	for _, m := range eg.members {
		if err := m.ApplyRF(b1, grad, raster); err != nil {
			return err
		}
	}
	return nil
}

func (eg *EnsembleSpinGroup) PrecessUnderGradient(area [3]float64, duration float64) error {
	for _, m := range eg.members {
		if err := m.PrecessUnderGradient(area, duration); err != nil {
			return err
		}
	}
	return nil
}

// Sample lets every member record its window, then stores the ensemble mean
// of the new samples.
func (eg *EnsembleSpinGroup) Sample(ro *Readout) error {
	start := len(eg.members[0].signal)
	for _, m := range eg.members {
		if err := m.Sample(ro); err != nil {
			return err
		}
	}
	scale := complex(float64(len(eg.members)), 0)
	for i := start; i < len(eg.members[0].signal); i++ {
		var sum complex128
		for _, m := range eg.members {
			sum += m.signal[i]
		}
		eg.signal = append(eg.signal, sum/scale)
	}
	return nil
}

// Magnetization returns the ensemble-mean magnetization.
func (eg *EnsembleSpinGroup) Magnetization() r3.Vec {
	var sum r3.Vec
	for _, m := range eg.members {
		sum = r3.Add(sum, m.M)
	}
	return r3.Scale(1/float64(len(eg.members)), sum)
}

func (eg *EnsembleSpinGroup) Signal() []complex128 { return eg.signal }
