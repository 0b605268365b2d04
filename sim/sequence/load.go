package sequence

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML sequence file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sequence: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML sequence document. Missing raster times are filled
// with the package defaults.
func Parse(data []byte) (*Sequence, error) {
	var seq Sequence
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&seq); err != nil {
		return nil, fmt.Errorf("parsing sequence: %w", err)
	}
	if seq.RFRaster == 0 {
		seq.RFRaster = DefaultRFRaster
	}
	if seq.GradRaster == 0 {
		seq.GradRaster = DefaultGradRaster
	}
	return &seq, nil
}

// Validate checks that every block of the sequence is well formed: raster
// times are positive, records are internally consistent, and no block mixes
// events that the classifier would have to drop.
func (s *Sequence) Validate() error {
	if err := validateFinitePositive("rf_raster", s.RFRaster); err != nil {
		return err
	}
	if err := validateFinitePositive("grad_raster", s.GradRaster); err != nil {
		return err
	}
	for i := range s.Blocks {
		if err := validateBlock(&s.Blocks[i], i); err != nil {
			return err
		}
	}
	return nil
}

func validateBlock(b *Block, idx int) error {
	prefix := fmt.Sprintf("block[%d]", idx)

	if len(b.Flags) != 0 && len(b.Flags) != NumFlags {
		return fmt.Errorf("%s: flags must have %d entries, got %d", prefix, NumFlags, len(b.Flags))
	}
	for j, v := range b.Flags {
		if v != 0 && v != 1 {
			return fmt.Errorf("%s: flags[%d] must be 0 or 1, got %d", prefix, j, v)
		}
	}

	f := b.EventFlags()
	if err := validateFlagConsistency(b, f, prefix); err != nil {
		return err
	}
	if err := validateFlagConflicts(f, prefix); err != nil {
		return err
	}

	if b.Delay != nil {
		if err := validateFiniteNonNegative(prefix+".delay.duration", b.Delay.Duration); err != nil {
			return err
		}
	}
	if b.RF != nil {
		if err := validateRF(b.RF, prefix+".rf"); err != nil {
			return err
		}
	}
	for axis := AxisX; axis <= AxisZ; axis++ {
		if g := b.Grad(axis); g != nil {
			if err := validateGradient(g, fmt.Sprintf("%s.%s", prefix, axisName(axis))); err != nil {
				return err
			}
		}
	}
	if b.ADC != nil {
		if err := validateADC(b.ADC, prefix+".adc"); err != nil {
			return err
		}
	}
	return nil
}

// validateFlagConsistency rejects a flag vector that disagrees with the
// records actually present. With derived flags the two cannot disagree; an
// explicit flags field can.
func validateFlagConsistency(b *Block, f [NumFlags]int, prefix string) error {
	records := [NumFlags]bool{
		FlagDelay: b.Delay != nil,
		FlagRF:    b.RF != nil,
		FlagGradX: b.Gx != nil,
		FlagGradY: b.Gy != nil,
		FlagGradZ: b.Gz != nil,
		FlagADC:   b.ADC != nil,
	}
	names := [NumFlags]string{"delay", "rf", "gx", "gy", "gz", "adc"}
	for j := 0; j < NumFlags; j++ {
		if f[j] != 0 && !records[j] {
			return fmt.Errorf("%s: %s flag is set but the %s record is missing", prefix, names[j], names[j])
		}
		if f[j] == 0 && records[j] {
			return fmt.Errorf("%s: %s record is present but its flag is clear", prefix, names[j])
		}
	}
	return nil
}

// validateFlagConflicts rejects combinations the compiler's first-match
// classification would silently truncate. Gradients riding along with an RF
// or ADC event are the normal composition and pass through.
func validateFlagConflicts(f [NumFlags]int, prefix string) error {
	hasGrad := f[FlagGradX] != 0 || f[FlagGradY] != 0 || f[FlagGradZ] != 0
	switch {
	case f[FlagDelay] == 0 && f[FlagRF] == 0 && f[FlagADC] == 0 && !hasGrad:
		return fmt.Errorf("%s: no event flags set", prefix)
	case f[FlagDelay] != 0 && (f[FlagRF] != 0 || f[FlagADC] != 0 || hasGrad):
		return fmt.Errorf("%s: delay events must stand alone, found concurrent rf/gradient/adc flags", prefix)
	case f[FlagRF] != 0 && f[FlagADC] != 0:
		return fmt.Errorf("%s: rf and adc flags are both set; transmit and receive cannot overlap", prefix)
	}
	return nil
}

func validateRF(rf *RF, prefix string) error {
	if len(rf.T) == 0 {
		return fmt.Errorf("%s: t must not be empty", prefix)
	}
	if len(rf.Re) != len(rf.T) {
		return fmt.Errorf("%s: re has %d samples, t has %d", prefix, len(rf.Re), len(rf.T))
	}
	if len(rf.Im) != 0 && len(rf.Im) != len(rf.T) {
		return fmt.Errorf("%s: im has %d samples, t has %d", prefix, len(rf.Im), len(rf.T))
	}
	if err := validateStrictlyIncreasing(prefix+".t", rf.T); err != nil {
		return err
	}
	if err := validateAllFinite(prefix+".re", rf.Re); err != nil {
		return err
	}
	if err := validateAllFinite(prefix+".im", rf.Im); err != nil {
		return err
	}
	if err := validateFinite(prefix+".freq_offset", rf.FreqOffset); err != nil {
		return err
	}
	return validateFinite(prefix+".phase_offset", rf.PhaseOffset)
}

func validateGradient(g *Gradient, prefix string) error {
	if !validGradientTypes[g.Type] {
		return fmt.Errorf("%s: unknown gradient type %q; valid: trap, grad", prefix, g.Type)
	}
	switch g.Type {
	case TrapGradient:
		if err := validateFiniteNonNegative(prefix+".rise", g.RiseTime); err != nil {
			return err
		}
		if err := validateFiniteNonNegative(prefix+".flat", g.FlatTime); err != nil {
			return err
		}
		if err := validateFiniteNonNegative(prefix+".fall", g.FallTime); err != nil {
			return err
		}
		if g.RiseTime+g.FlatTime+g.FallTime <= 0 {
			return fmt.Errorf("%s: trapezoid has zero duration", prefix)
		}
		if err := validateFinite(prefix+".amplitude", g.Amplitude); err != nil {
			return err
		}
	case ArbitraryGradient:
		if len(g.T) < 2 {
			return fmt.Errorf("%s: sampled gradient needs at least 2 time points, got %d", prefix, len(g.T))
		}
		if len(g.Waveform) != len(g.T) {
			return fmt.Errorf("%s: waveform has %d samples, t has %d", prefix, len(g.Waveform), len(g.T))
		}
		if err := validateStrictlyIncreasing(prefix+".t", g.T); err != nil {
			return err
		}
		if err := validateAllFinite(prefix+".waveform", g.Waveform); err != nil {
			return err
		}
	}
	return nil
}

func validateADC(adc *ADC, prefix string) error {
	if adc.Samples < 1 {
		return fmt.Errorf("%s: samples must be at least 1, got %d", prefix, adc.Samples)
	}
	if err := validateFinitePositive(prefix+".dwell", adc.Dwell); err != nil {
		return err
	}
	if err := validateFiniteNonNegative(prefix+".delay", adc.Delay); err != nil {
		return err
	}
	return validateFinite(prefix+".phase_offset", adc.PhaseOffset)
}

func axisName(axis int) string {
	switch axis {
	case AxisX:
		return "gx"
	case AxisY:
		return "gy"
	case AxisZ:
		return "gz"
	}
	return "g?"
}

func validateStrictlyIncreasing(name string, vs []float64) error {
	if err := validateAllFinite(name, vs); err != nil {
		return err
	}
	for i := 1; i < len(vs); i++ {
		if vs[i] <= vs[i-1] {
			return fmt.Errorf("%s must be strictly increasing, got %g after %g at index %d", name, vs[i], vs[i-1], i)
		}
	}
	return nil
}

func validateAllFinite(name string, vs []float64) error {
	for i, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s[%d] must be a finite number, got %f", name, i, v)
		}
	}
	return nil
}

func validateFinite(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if err := validateFinite(name, val); err != nil {
		return err
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %g", name, val)
	}
	return nil
}

func validateFiniteNonNegative(name string, val float64) error {
	if err := validateFinite(name, val); err != nil {
		return err
	}
	if val < 0 {
		return fmt.Errorf("%s must be non-negative, got %g", name, val)
	}
	return nil
}
