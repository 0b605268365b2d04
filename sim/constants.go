package sim

import "math"

// Gyromagnetic constants for the hydrogen nucleus. Process-wide immutable
// values; every unit conversion in the package routes through these.
const (
	// GammaBar is the reduced gyromagnetic ratio in Hz/T.
	GammaBar = 42.5775e6

	// Gamma is the angular gyromagnetic ratio in rad/(s*T).
	Gamma = 2 * math.Pi * GammaBar
)
