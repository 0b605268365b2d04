package sequence

import "math"

// New returns an empty sequence with the default raster times.
func New(name string) *Sequence {
	return &Sequence{
		Name:       name,
		RFRaster:   DefaultRFRaster,
		GradRaster: DefaultGradRaster,
	}
}

// AddBlock appends a fully formed block.
func (s *Sequence) AddBlock(b Block) {
	s.Blocks = append(s.Blocks, b)
}

// AddDelay appends a pure wait block.
func (s *Sequence) AddDelay(duration float64) {
	s.AddBlock(Block{Delay: &Delay{Duration: duration}})
}

// AddHardPulse appends a constant-amplitude RF block producing the given
// flip angle (radians) over the given duration, with no gradient. The
// amplitude follows from flip = 2*pi * amp_hz * duration.
func (s *Sequence) AddHardPulse(flip, phase, duration float64) {
	n := int(math.Round(duration / s.RFRaster))
	if n < 1 {
		n = 1
	}
	amp := flip / (2 * math.Pi * duration)
	t := make([]float64, n)
	re := make([]float64, n)
	for k := range t {
		t[k] = float64(k+1) * s.RFRaster
		re[k] = amp
	}
	s.AddBlock(Block{RF: &RF{T: t, Re: re, PhaseOffset: phase}})
}

// AddTrapezoid appends a gradient-only block with a single trapezoid on the
// given axis. Amplitude is in Hz/m; a zero amplitude gives a pure free
// precession interval of duration rise+flat+fall.
func (s *Sequence) AddTrapezoid(axis int, amplitude, rise, flat, fall float64) {
	var b Block
	g := Trap(amplitude, rise, flat, fall)
	switch axis {
	case AxisX:
		b.Gx = g
	case AxisY:
		b.Gy = g
	case AxisZ:
		b.Gz = g
	}
	s.AddBlock(b)
}

// AddArbitraryGradient appends a gradient-only block with a sampled shape on
// the given axis.
func (s *Sequence) AddArbitraryGradient(axis int, t, waveform []float64) {
	var b Block
	g := Arbitrary(t, waveform)
	switch axis {
	case AxisX:
		b.Gx = g
	case AxisY:
		b.Gy = g
	case AxisZ:
		b.Gz = g
	}
	s.AddBlock(b)
}

// AddReadout appends an ADC block with no gradient. Readouts under a
// gradient are composed with AddBlock and the Trap/Arbitrary constructors.
func (s *Sequence) AddReadout(samples int, dwell, delay, phase float64) {
	s.AddBlock(Block{ADC: &ADC{
		Samples:     samples,
		Dwell:       dwell,
		Delay:       delay,
		PhaseOffset: phase,
	}})
}

// Trap builds a trapezoid gradient record. Amplitude is in Hz/m.
func Trap(amplitude, rise, flat, fall float64) *Gradient {
	return &Gradient{
		Type:      TrapGradient,
		RiseTime:  rise,
		FlatTime:  flat,
		FallTime:  fall,
		Amplitude: amplitude,
	}
}

// Arbitrary builds a sampled gradient record. Waveform is in Hz/m at the
// time points t.
func Arbitrary(t, waveform []float64) *Gradient {
	return &Gradient{Type: ArbitraryGradient, T: t, Waveform: waveform}
}

// Demo returns the canonical do-nothing regression sequence: a delay, an
// on-resonance 90 degree hard pulse, a zero-area free precession interval,
// and a gradient-free FID readout. With relaxation disabled every readout
// sample has the same magnitude.
func Demo() *Sequence {
	s := New("demo-fid")
	s.AddDelay(1e-3)
	s.AddHardPulse(math.Pi/2, 0, 1e-3)
	s.AddTrapezoid(AxisX, 0, 0.5e-3, 1e-3, 0.5e-3)
	s.AddReadout(100, 10e-6, 0, 0)
	return s
}
