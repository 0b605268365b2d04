package sim

import "fmt"

// Field map mode names accepted by FieldConfig.
const (
	FieldModeUniform   = "uniform"
	FieldModeLinear    = "linear"
	FieldModeQuadratic = "quadratic"
)

var validFieldModes = map[string]bool{
	"":                 true,
	FieldModeUniform:   true,
	FieldModeLinear:    true,
	FieldModeQuadratic: true,
}

// FieldConfig selects the static off-resonance map for a run.
type FieldConfig struct {
	Mode  string  // "uniform" (default), "linear", "quadratic"
	Scale float64 // T/m (linear) or T/m^2 (quadratic); non-positive = mode default
}

// Validate rejects unknown mode names. The underlying map constructor is
// permissive; the strictness lives here so config typos fail fast.
func (c FieldConfig) Validate() error {
	if !validFieldModes[c.Mode] {
		return fmt.Errorf("unknown field mode %q; valid: uniform, linear, quadratic", c.Mode)
	}
	return nil
}

// Build returns the configured field map.
func (c FieldConfig) Build() FieldMap {
	switch c.Mode {
	case FieldModeLinear:
		return NewFieldMap(FieldLinear, c.Scale)
	case FieldModeQuadratic:
		return NewFieldMap(FieldQuadratic, c.Scale)
	}
	return NewFieldMap(FieldUniform, 0)
}
