// Package testutil provides shared assertion helpers for the simulator's
// numerical tests: relative-tolerance float comparison and complex-signal
// checks used across sim/ test packages.
package testutil

import (
	"math"
	"math/cmplx"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertAllClose compares two float64 slices element-wise with absolute
// tolerance.
func AssertAllClose(t *testing.T, name string, want, got []float64, tol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("%s: got %d values, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.Abs(want[i]-got[i]) > tol {
			t.Errorf("%s[%d]: got %v, want %v", name, i, got[i], want[i])
		}
	}
}

// Magnitudes returns |v| per sample.
func Magnitudes(sig []complex128) []float64 {
	out := make([]float64, len(sig))
	for i, v := range sig {
		out[i] = cmplx.Abs(v)
	}
	return out
}

// AssertConstantMagnitude checks that every sample of sig has the same
// magnitude within absolute tolerance.
func AssertConstantMagnitude(t *testing.T, name string, sig []complex128, tol float64) {
	t.Helper()
	if len(sig) == 0 {
		t.Fatalf("%s: empty signal", name)
	}
	first := cmplx.Abs(sig[0])
	for i, v := range sig {
		if math.Abs(cmplx.Abs(v)-first) > tol {
			t.Errorf("%s[%d]: magnitude %v, want %v", name, i, cmplx.Abs(v), first)
		}
	}
}
