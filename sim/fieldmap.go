package sim

import "gonum.org/v1/gonum/spatial/r3"

// FieldMap is a pure function returning the static field deviation dB0 in
// Tesla at a location. The orchestrator converts it to a frequency offset
// with GammaBar before constructing spin states.
type FieldMap func(loc r3.Vec) float64

// Field map modes.
const (
	FieldUniform   = 0
	FieldLinear    = 1
	FieldQuadratic = 2
)

// Default field scales for the shaped modes, in T/m and T/m^2.
const (
	DefaultLinearScale    = 1e-4
	DefaultQuadraticScale = 1e-3
)

// NewFieldMap builds one of the predefined inhomogeneity maps: uniform
// zero, linear in radial distance, or quadratic. A non-positive scale
// selects the mode's default; modes outside the known set behave as
// uniform, matching the permissive upstream behavior.
func NewFieldMap(mode int, scale float64) FieldMap {
	switch mode {
	case FieldLinear:
		if scale <= 0 {
			scale = DefaultLinearScale
		}
		sc := scale
		return func(loc r3.Vec) float64 { return sc * r3.Norm(loc) }
	case FieldQuadratic:
		if scale <= 0 {
			scale = DefaultQuadraticScale
		}
		sc := scale
		return func(loc r3.Vec) float64 { return sc * r3.Norm2(loc) }
	}
	return func(r3.Vec) float64 { return 0 }
}
