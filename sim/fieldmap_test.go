package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/blochsim/blochsim/sim/internal/testutil"
)

func TestNewFieldMap_Uniform(t *testing.T) {
	field := NewFieldMap(FieldUniform, 0)
	assert.Equal(t, 0.0, field(r3.Vec{}))
	assert.Equal(t, 0.0, field(r3.Vec{X: 0.1, Y: -0.2, Z: 0.3}))
}

func TestNewFieldMap_LinearInRadius(t *testing.T) {
	field := NewFieldMap(FieldLinear, 2e-4)
	loc := r3.Vec{X: 0.03, Y: 0.04}
	testutil.AssertFloat64Equal(t, "dB0", 2e-4*0.05, field(loc), 1e-12)
	assert.Equal(t, 0.0, field(r3.Vec{}))
}

func TestNewFieldMap_QuadraticInRadius(t *testing.T) {
	field := NewFieldMap(FieldQuadratic, 5e-3)
	loc := r3.Vec{X: 0.03, Y: 0.04}
	testutil.AssertFloat64Equal(t, "dB0", 5e-3*0.0025, field(loc), 1e-12)
}

func TestNewFieldMap_NonPositiveScaleUsesDefault(t *testing.T) {
	loc := r3.Vec{Z: 0.1}
	linear := NewFieldMap(FieldLinear, 0)
	testutil.AssertFloat64Equal(t, "linear", DefaultLinearScale*0.1, linear(loc), 1e-12)

	quadratic := NewFieldMap(FieldQuadratic, -1)
	testutil.AssertFloat64Equal(t, "quadratic", DefaultQuadraticScale*0.01, quadratic(loc), 1e-12)
}

func TestNewFieldMap_UnknownModeIsUniform(t *testing.T) {
	field := NewFieldMap(99, 123)
	assert.Equal(t, 0.0, field(r3.Vec{X: 1}))
}
