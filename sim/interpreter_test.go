package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/blochsim/blochsim/sim/phantom"
	"github.com/blochsim/blochsim/sim/sequence"
)

func TestRun_AppliesEveryInstruction(t *testing.T) {
	prog, err := Compile(sequence.Demo())
	assert.NoError(t, err)

	st := NewSpinGroup(r3.Vec{}, phantom.TissueParams{PD: 1}, 0)
	assert.NoError(t, Run(st, prog))
	assert.Len(t, st.Signal(), 100)
}

func TestRun_NilInstructionRejected(t *testing.T) {
	prog := &Program{Instructions: []Instruction{&Delay{Duration: 1e-3}, nil}}
	st := NewSpinGroup(r3.Vec{}, phantom.TissueParams{PD: 1}, 0)
	assert.ErrorContains(t, Run(st, prog), "instruction 1: nil")
}

func TestRun_FailureNamesInstruction(t *testing.T) {
	prog := &Program{Instructions: []Instruction{
		&Delay{Duration: 1e-3},
		&Delay{Duration: -1},
	}}
	st := NewSpinGroup(r3.Vec{}, phantom.TissueParams{PD: 1}, 0)
	err := Run(st, prog)
	assert.ErrorContains(t, err, "instruction 1 (delay)")
	assert.ErrorContains(t, err, "negative duration")
}

func TestRunTrace_OneVectorPerInstruction(t *testing.T) {
	prog, err := Compile(sequence.Demo())
	assert.NoError(t, err)

	st := NewSpinGroup(r3.Vec{}, phantom.TissueParams{PD: 1}, 0)
	trace, err := RunTrace(st, prog)
	assert.NoError(t, err)
	assert.Len(t, trace, len(prog.Instructions))

	// the delay leaves equilibrium untouched, the pulse tips into the
	// transverse plane
	assert.Equal(t, r3.Vec{Z: 1}, trace[0])
	assert.InDelta(t, 0, trace[1].Z, 1e-6)
	assert.InDelta(t, 1, trace[1].Y, 1e-6)
}

func TestRunTrace_KeepsPartialTraceOnFailure(t *testing.T) {
	prog := &Program{Instructions: []Instruction{
		&Delay{Duration: 1e-3},
		&Delay{Duration: -1},
		&Delay{Duration: 1e-3},
	}}
	st := NewSpinGroup(r3.Vec{}, phantom.TissueParams{PD: 1}, 0)
	trace, err := RunTrace(st, prog)
	assert.Error(t, err)
	assert.Len(t, trace, 1)
}
