// Package sim compiles pulse sequences into instruction streams and replays
// them against Bloch spin states, one per phantom location.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - resample.go: gradient records -> dense waveforms on a shared time grid
//   - compile.go: event-table classification and instruction emission
//   - spingroup.go: the default spin state (hard-pulse RF, closed-form precession)
//
// # Architecture
//
// A run has two phases. Compile lowers a sequence.Sequence to a Program,
// one instruction per block; this is paid once and the Program is shared
// read-only afterwards. SimulatePhantom then fans out over the phantom's
// locations, constructs one spin state per location (driver.go, variant.go)
// and replays the Program against it (interpreter.go). Collaborator data
// lives in sub-packages:
//   - sim/sequence/: block/event data model, YAML loading, builders
//   - sim/phantom/: location lattices with tissue, diffusion, and T2* maps
//
// # Key Interfaces
//
// The extension points are two small interfaces:
//   - SpinState: advance / apply RF / sample / precess, implemented by the
//     default, solver, diffusion, and t2star variants
//   - Instruction: the closed set Delay, RFPulse, Readout, FreePrecess
package sim
