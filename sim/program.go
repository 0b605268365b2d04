package sim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// OpKind names the instruction categories a compiled program is made of.
type OpKind string

const (
	OpDelay       OpKind = "delay"
	OpRF          OpKind = "rf"
	OpReadout     OpKind = "readout"
	OpFreePrecess OpKind = "free_precess"
)

// SpinState is the capability surface an instruction drives. Implementations
// hold the magnetization of one spatial location and accumulate the complex
// signal sampled during readouts.
//
// Durations are in seconds, gradient rows in T/m, areas in T*s/m, B1 in T.
type SpinState interface {
	// Advance evolves the state through a field-free interval.
	Advance(duration float64) error

	// ApplyRF plays a B1 waveform with its co-timed gradient, one rotation
	// per raster step.
	ApplyRF(b1 []complex128, grad [3][]float64, raster float64) error

	// Sample runs a readout window, recording one signal value per dwell.
	Sample(ro *Readout) error

	// PrecessUnderGradient evolves the state through a gradient interval
	// known only by its net area and duration.
	PrecessUnderGradient(area [3]float64, duration float64) error

	// Magnetization returns the current net magnetization vector.
	Magnetization() r3.Vec

	// Signal returns all samples recorded so far, in acquisition order.
	Signal() []complex128
}

// Instruction is one step of a compiled program. The four implementations
// below form a closed set; the interpreter dispatches on nothing else.
type Instruction interface {
	Kind() OpKind
	Apply(st SpinState) error
	String() string
}

// Delay waits without touching the transverse phase beyond relaxation and
// off-resonance precession.
type Delay struct {
	Duration float64
}

func (in *Delay) Kind() OpKind { return OpDelay }

func (in *Delay) Apply(st SpinState) error { return st.Advance(in.Duration) }

func (in *Delay) String() string {
	return fmt.Sprintf("DELAY        %10.6gs", in.Duration)
}

// RFPulse plays a demodulated B1 waveform sample by sample, with the
// gradient resampled onto the same time points.
type RFPulse struct {
	B1     []complex128
	Grad   [3][]float64
	Raster float64
}

func (in *RFPulse) Kind() OpKind { return OpRF }

func (in *RFPulse) Apply(st SpinState) error {
	return st.ApplyRF(in.B1, in.Grad, in.Raster)
}

func (in *RFPulse) String() string {
	return fmt.Sprintf("RF           %10.6gs  %d samples", float64(len(in.B1))*in.Raster, len(in.B1))
}

// Readout acquires Samples signal values, one per Dwell, after an initial
// Delay under the leading gradient amplitude. Grad and Timing come from the
// resampler; WaveformKind is carried for reporting.
type Readout struct {
	Dwell        float64
	Samples      int
	Delay        float64
	Grad         [3][]float64
	Timing       []float64
	WaveformKind GradKind
	Phase        float64
}

func (in *Readout) Kind() OpKind { return OpReadout }

func (in *Readout) Apply(st SpinState) error { return st.Sample(in) }

func (in *Readout) String() string {
	return fmt.Sprintf("READOUT      %10.6gs  %d samples, dwell %.3gs", float64(in.Samples)*in.Dwell, in.Samples, in.Dwell)
}

// FreePrecess evolves the state under a pure-gradient block reduced to its
// net per-axis area.
type FreePrecess struct {
	Area     [3]float64
	Duration float64
}

func (in *FreePrecess) Kind() OpKind { return OpFreePrecess }

func (in *FreePrecess) Apply(st SpinState) error {
	return st.PrecessUnderGradient(in.Area, in.Duration)
}

func (in *FreePrecess) String() string {
	return fmt.Sprintf("FREE_PRECESS %10.6gs  area (%.3g, %.3g, %.3g)", in.Duration, in.Area[0], in.Area[1], in.Area[2])
}

// Program is a compiled instruction stream. It is immutable after Compile
// and safe to share across every location and worker of a run.
type Program struct {
	Name       string
	RFRaster   float64
	GradRaster float64

	Instructions []Instruction

	fingerprint uint64
}

// Fingerprint returns the content hash of the source sequence, the key the
// compile cache uses.
func (p *Program) Fingerprint() uint64 { return p.fingerprint }

// Counts tallies instructions per kind.
func (p *Program) Counts() map[OpKind]int {
	counts := make(map[OpKind]int, 4)
	for _, in := range p.Instructions {
		if in != nil {
			counts[in.Kind()]++
		}
	}
	return counts
}

// ReadoutSamples sums the sample quota of every readout in the program.
func (p *Program) ReadoutSamples() int {
	total := 0
	for _, in := range p.Instructions {
		if ro, ok := in.(*Readout); ok {
			total += ro.Samples
		}
	}
	return total
}
