// Package sequence defines the pulse-sequence data model consumed by the
// Bloch simulation compiler: ordered blocks of delay, RF, gradient, and ADC
// events plus the two raster-time constants that govern their sampling.
//
// Units follow the upstream sequence convention: times are in seconds, RF
// amplitudes in Hz (gamma_bar * B1), and gradient amplitudes in Hz/m. The
// compiler converts to Tesla-based units when it builds instructions.
package sequence

import (
	"encoding/binary"
	"hash/fnv"
	"io"
	"math"
)

// Event-flag positions in a block's flag vector.
const (
	FlagDelay = iota
	FlagRF
	FlagGradX
	FlagGradY
	FlagGradZ
	FlagADC

	NumFlags
)

// Gradient axes, in flag-vector order.
const (
	AxisX = iota
	AxisY
	AxisZ
)

// Gradient record kinds.
const (
	TrapGradient      = "trap"
	ArbitraryGradient = "grad"
)

var validGradientTypes = map[string]bool{
	TrapGradient:      true,
	ArbitraryGradient: true,
}

// Default raster times, in seconds.
const (
	DefaultRFRaster   = 1e-6
	DefaultGradRaster = 10e-6
)

// Sequence is an ordered list of event blocks plus the raster constants
// shared by every block.
type Sequence struct {
	Name       string  `yaml:"name"`
	RFRaster   float64 `yaml:"rf_raster"`
	GradRaster float64 `yaml:"grad_raster"`
	Blocks     []Block `yaml:"blocks"`
}

// Block groups the events that play out together over one interval of the
// sequence. Sub-records are nil when the corresponding event is absent.
//
// Flags optionally overrides the derived event-flag vector; sequence files
// normally omit it and let the record presence speak for itself.
type Block struct {
	Flags []int     `yaml:"flags,omitempty"`
	Delay *Delay    `yaml:"delay,omitempty"`
	RF    *RF       `yaml:"rf,omitempty"`
	Gx    *Gradient `yaml:"gx,omitempty"`
	Gy    *Gradient `yaml:"gy,omitempty"`
	Gz    *Gradient `yaml:"gz,omitempty"`
	ADC   *ADC      `yaml:"adc,omitempty"`
}

// Delay is a pure wait interval.
type Delay struct {
	Duration float64 `yaml:"duration"`
}

// RF is a sampled RF pulse. Re and Im hold the complex envelope in Hz at
// the time points T; Im may be left empty for a real-valued pulse.
type RF struct {
	T           []float64 `yaml:"t"`
	Re          []float64 `yaml:"re"`
	Im          []float64 `yaml:"im,omitempty"`
	FreqOffset  float64   `yaml:"freq_offset,omitempty"`
	PhaseOffset float64   `yaml:"phase_offset,omitempty"`
}

// Gradient is one axis of gradient activity, either a trapezoid described by
// its corner times or an arbitrary shape sampled at explicit time points.
type Gradient struct {
	Type string `yaml:"type"`

	// Trapezoid fields, used when Type == TrapGradient.
	RiseTime  float64 `yaml:"rise,omitempty"`
	FlatTime  float64 `yaml:"flat,omitempty"`
	FallTime  float64 `yaml:"fall,omitempty"`
	Amplitude float64 `yaml:"amplitude,omitempty"`

	// Sampled fields, used when Type == ArbitraryGradient.
	T        []float64 `yaml:"t,omitempty"`
	Waveform []float64 `yaml:"waveform,omitempty"`
}

// ADC is a sampling window: Samples readings spaced Dwell seconds apart,
// starting Delay seconds into the block.
type ADC struct {
	Samples     int     `yaml:"samples"`
	Dwell       float64 `yaml:"dwell"`
	Delay       float64 `yaml:"delay,omitempty"`
	PhaseOffset float64 `yaml:"phase_offset,omitempty"`
}

// Grad returns the gradient record on the given axis, nil when inactive.
func (b *Block) Grad(axis int) *Gradient {
	switch axis {
	case AxisX:
		return b.Gx
	case AxisY:
		return b.Gy
	case AxisZ:
		return b.Gz
	}
	return nil
}

// EventFlags returns the block's flag vector in the order
// [delay, rf, gx, gy, gz, adc]. An explicit Flags field wins; otherwise the
// vector is derived from which sub-records are present.
func (b *Block) EventFlags() [NumFlags]int {
	var f [NumFlags]int
	if len(b.Flags) == NumFlags {
		copy(f[:], b.Flags)
		return f
	}
	if b.Delay != nil {
		f[FlagDelay] = 1
	}
	if b.RF != nil {
		f[FlagRF] = 1
	}
	if b.Gx != nil {
		f[FlagGradX] = 1
	}
	if b.Gy != nil {
		f[FlagGradY] = 1
	}
	if b.Gz != nil {
		f[FlagGradZ] = 1
	}
	if b.ADC != nil {
		f[FlagADC] = 1
	}
	return f
}

// HasGradient reports whether any gradient flag is set.
func (b *Block) HasGradient() bool {
	f := b.EventFlags()
	return f[FlagGradX] != 0 || f[FlagGradY] != 0 || f[FlagGradZ] != 0
}

// Fingerprint returns a content hash of the sequence. Two sequences with the
// same fingerprint compile to the same instruction stream, which is what the
// compile cache keys on.
func (s *Sequence) Fingerprint() uint64 {
	h := fnv.New64a()
	io.WriteString(h, s.Name)
	hashFloat(h, s.RFRaster)
	hashFloat(h, s.GradRaster)
	for _, b := range s.Blocks {
		f := b.EventFlags()
		for _, v := range f {
			hashInt(h, int64(v))
		}
		if b.Delay != nil {
			io.WriteString(h, "d")
			hashFloat(h, b.Delay.Duration)
		}
		if b.RF != nil {
			io.WriteString(h, "p")
			hashFloat(h, b.RF.FreqOffset)
			hashFloat(h, b.RF.PhaseOffset)
			hashFloats(h, b.RF.T)
			hashFloats(h, b.RF.Re)
			hashFloats(h, b.RF.Im)
		}
		for axis := AxisX; axis <= AxisZ; axis++ {
			g := b.Grad(axis)
			if g == nil {
				continue
			}
			io.WriteString(h, "g")
			hashInt(h, int64(axis))
			io.WriteString(h, g.Type)
			hashFloat(h, g.RiseTime)
			hashFloat(h, g.FlatTime)
			hashFloat(h, g.FallTime)
			hashFloat(h, g.Amplitude)
			hashFloats(h, g.T)
			hashFloats(h, g.Waveform)
		}
		if b.ADC != nil {
			io.WriteString(h, "r")
			hashInt(h, int64(b.ADC.Samples))
			hashFloat(h, b.ADC.Dwell)
			hashFloat(h, b.ADC.Delay)
			hashFloat(h, b.ADC.PhaseOffset)
		}
	}
	return h.Sum64()
}

func hashFloat(h io.Writer, v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	h.Write(buf[:])
}

func hashInt(h io.Writer, v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}

func hashFloats(h io.Writer, vs []float64) {
	hashInt(h, int64(len(vs)))
	for _, v := range vs {
		hashFloat(h, v)
	}
}
