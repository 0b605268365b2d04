// sim/compile.go
//
// Sequence compilation: one linear pass over the event table, emitting one
// instruction per block. Classification is first-match over the fixed
// priority delay -> RF -> ADC -> any-gradient. Validation has already
// rejected flag combinations that priority would silently truncate, so here
// the priority order only routes well-formed blocks.
//
// Compilation touches no spin state and is paid once per sequence; the
// resulting Program is replayed across all locations.

package sim

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/blochsim/blochsim/sim/sequence"
)

// Compile validates the sequence and lowers it to an instruction stream.
// The stream has exactly one instruction per block, in table order.
func Compile(seq *sequence.Sequence) (*Program, error) {
	if err := seq.Validate(); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	prog := &Program{
		Name:         seq.Name,
		RFRaster:     seq.RFRaster,
		GradRaster:   seq.GradRaster,
		Instructions: make([]Instruction, 0, len(seq.Blocks)),
		fingerprint:  seq.Fingerprint(),
	}
	for i := range seq.Blocks {
		in, err := compileBlock(seq, &seq.Blocks[i])
		if err != nil {
			return nil, fmt.Errorf("compile block %d: %w", i, err)
		}
		prog.Instructions = append(prog.Instructions, in)
	}
	return prog, nil
}

func compileBlock(seq *sequence.Sequence, blk *sequence.Block) (Instruction, error) {
	f := blk.EventFlags()
	switch {
	case f[sequence.FlagDelay] != 0:
		return &Delay{Duration: blk.Delay.Duration}, nil
	case f[sequence.FlagRF] != 0:
		return compileRF(seq, blk)
	case f[sequence.FlagADC] != 0:
		return compileReadout(blk)
	case blk.HasGradient():
		return compileFreePrecess(seq, blk)
	}
	return nil, fmt.Errorf("no classifiable event")
}

// compileRF demodulates the raw envelope into B1 in Tesla. The time vector
// is shifted back by one raster step so the first sample sits at t=0, then
// reused as the gradient interpolation grid.
func compileRF(seq *sequence.Sequence, blk *sequence.Block) (Instruction, error) {
	rf := blk.RF
	n := len(rf.T)
	shifted := make([]float64, n)
	for k := range shifted {
		shifted[k] = rf.T[k] - seq.RFRaster
	}

	b1 := make([]complex128, n)
	for k := range b1 {
		var im float64
		if len(rf.Im) != 0 {
			im = rf.Im[k]
		}
		env := complex(rf.Re[k]/GammaBar, im/GammaBar)
		phase := rf.PhaseOffset - 2*math.Pi*rf.FreqOffset*shifted[k]
		b1[k] = env * cmplx.Exp(complex(0, phase))
	}

	wf, err := Resample(blk, ResampleOptions{Timing: shifted})
	if err != nil {
		return nil, fmt.Errorf("rf gradient: %w", err)
	}
	return &RFPulse{B1: b1, Grad: wf.Grad, Raster: seq.RFRaster}, nil
}

func compileReadout(blk *sequence.Block) (Instruction, error) {
	adc := blk.ADC
	wf, err := Resample(blk, ResampleOptions{Raster: adc.Dwell, Delay: adc.Delay})
	if err != nil {
		return nil, fmt.Errorf("adc gradient: %w", err)
	}
	return &Readout{
		Dwell:        adc.Dwell,
		Samples:      adc.Samples,
		Delay:        adc.Delay,
		Grad:         wf.Grad,
		Timing:       wf.Timing,
		WaveformKind: wf.Kind,
		Phase:        adc.PhaseOffset,
	}, nil
}

func compileFreePrecess(seq *sequence.Sequence, blk *sequence.Block) (Instruction, error) {
	area, err := TotalArea(blk)
	if err != nil {
		return nil, err
	}
	return &FreePrecess{
		Area:     area,
		Duration: PrecessDuration(blk, seq.GradRaster),
	}, nil
}
