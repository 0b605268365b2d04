package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/blochsim/blochsim/sim/internal/testutil"
	"github.com/blochsim/blochsim/sim/phantom"
)

func TestSimulatePhantom_EndToEndFID(t *testing.T) {
	// delay, on-resonance 90, zero-area gradient, gradient-free readout:
	// with relaxation disabled every sample keeps the same magnitude
	ph := phantom.NewPoint(r3.Vec{}, phantom.TissueParams{PD: 1})
	prog := demoProgram(t)

	ds, err := SimulatePhantom(context.Background(), ph, prog, nil, RunOptions{Workers: 2})
	assert.NoError(t, err)

	assert.Equal(t, "demo-fid", ds.SequenceName)
	assert.Equal(t, VariantDefault, ds.Variant)
	assert.Equal(t, 1, ds.Locations)
	assert.Equal(t, 100, ds.SamplesPerLocation)

	sig := ds.SignalAt(0)
	assert.Len(t, sig, 100)
	testutil.AssertConstantMagnitude(t, "fid", sig, 1e-9)
	testutil.AssertFloat64Equal(t, "|s0|", 1, testutil.Magnitudes(sig)[0], 1e-6)
}

func TestSimulatePhantom_WorkerCountInvariance(t *testing.T) {
	ph := phantom.NewGrid(3, 3, 1, [3]float64{0.2, 0.2, 0.01}, phantom.TissueParams{PD: 1, T1: 1, T2: 0.1})
	prog := demoProgram(t)
	field := NewFieldMap(FieldLinear, 0)

	serial, err := SimulatePhantom(context.Background(), ph, prog, field, RunOptions{Workers: 1})
	assert.NoError(t, err)
	parallel, err := SimulatePhantom(context.Background(), ph, prog, field, RunOptions{Workers: 4})
	assert.NoError(t, err)

	assert.Equal(t, serial.Signals, parallel.Signals)
}

func TestSimulatePhantom_MatchesSoloLocation(t *testing.T) {
	ph := phantom.NewGrid(2, 2, 1, [3]float64{0.1, 0.1, 0.01}, phantom.TissueParams{PD: 1})
	prog := demoProgram(t)
	const scale = 2e-4
	field := NewFieldMap(FieldLinear, scale)

	ds, err := SimulatePhantom(context.Background(), ph, prog, field, RunOptions{Workers: 3})
	assert.NoError(t, err)

	for idx := 0; idx < ph.NumLocations(); idx++ {
		df := GammaBar * field(ph.Location(idx))
		solo, err := SimulateLocation(ph, idx, df, prog, SpinConfig{})
		assert.NoError(t, err)
		assert.Equal(t, solo, ds.SignalAt(idx), "location %d", idx)
	}
}

func TestSimulatePhantom_NilFieldIsUniform(t *testing.T) {
	ph := phantom.NewGrid(2, 1, 1, [3]float64{0.1, 0.01, 0.01}, phantom.TissueParams{PD: 1})
	prog := demoProgram(t)

	bare, err := SimulatePhantom(context.Background(), ph, prog, nil, RunOptions{})
	assert.NoError(t, err)
	uniform, err := SimulatePhantom(context.Background(), ph, prog, NewFieldMap(FieldUniform, 0), RunOptions{})
	assert.NoError(t, err)
	assert.Equal(t, uniform.Signals, bare.Signals)
}

func TestSimulatePhantom_NilProgramRejected(t *testing.T) {
	ph := phantom.NewPoint(r3.Vec{}, phantom.TissueParams{PD: 1})
	_, err := SimulatePhantom(context.Background(), ph, nil, nil, RunOptions{})
	assert.ErrorContains(t, err, "nil program")
}

func TestSimulatePhantom_InvalidSpinConfigRejectedUpfront(t *testing.T) {
	ph := phantom.NewPoint(r3.Vec{}, phantom.TissueParams{PD: 1})
	prog := demoProgram(t)
	_, err := SimulatePhantom(context.Background(), ph, prog, nil, RunOptions{Spin: SpinConfig{Variant: "x"}})
	assert.ErrorContains(t, err, "simulate phantom")
	assert.ErrorContains(t, err, "unknown spin variant")
}

func TestSimulatePhantom_LocationFailureNamesIndex(t *testing.T) {
	// one voxel's T2 sits below the requested T2*, so only that location
	// fails to build its ensemble
	ph := phantom.NewGrid(3, 1, 1, [3]float64{0.1, 0.01, 0.01}, phantom.TissueParams{PD: 1, T2: 0.2})
	ph.SetTissueAt(1, phantom.TissueParams{PD: 1, T2: 0.01})
	prog := demoProgram(t)
	cfg := SpinConfig{Variant: VariantT2Star, T2Star: 0.05, Ensemble: 2}

	ds, err := SimulatePhantom(context.Background(), ph, prog, nil, RunOptions{Workers: 2, Spin: cfg})
	assert.Nil(t, ds)
	assert.ErrorContains(t, err, "simulate phantom")
	assert.ErrorContains(t, err, "location 1")
	assert.ErrorContains(t, err, "must be below t2")
}

func TestSimulatePhantom_CanceledContext(t *testing.T) {
	ph := phantom.NewGrid(4, 4, 1, [3]float64{0.1, 0.1, 0.01}, phantom.TissueParams{PD: 1})
	prog := demoProgram(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds, err := SimulatePhantom(ctx, ph, prog, nil, RunOptions{Workers: 2})
	assert.Nil(t, ds)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulatePhantom_ProgressReportsEveryLocation(t *testing.T) {
	ph := phantom.NewGrid(3, 2, 1, [3]float64{0.1, 0.1, 0.01}, phantom.TissueParams{PD: 1})
	prog := demoProgram(t)

	var seen []int
	opts := RunOptions{
		Workers: 3,
		Progress: func(done, total int) {
			assert.Equal(t, 6, total)
			seen = append(seen, done)
		},
	}
	_, err := SimulatePhantom(context.Background(), ph, prog, nil, opts)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, seen)
}

func TestSimulatePhantom_ClampsWorkersToLocations(t *testing.T) {
	ph := phantom.NewGrid(1, 1, 1, [3]float64{0.1, 0.1, 0.01}, phantom.TissueParams{PD: 1})
	prog := demoProgram(t)

	ds, err := SimulatePhantom(context.Background(), ph, prog, nil, RunOptions{Workers: 8})
	assert.NoError(t, err)
	assert.Equal(t, 1, ds.Locations)
	assert.Equal(t, 1, ds.Workers, "workers clamp to the location count")
}
