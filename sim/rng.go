package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical configuration MUST
// produce bit-for-bit identical results regardless of worker count or task
// interleaving.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// LocationSubsystem returns the RNG subsystem name for location i. Each
// spatial location draws from its own stream so its result does not depend
// on which worker happens to simulate it.
func LocationSubsystem(idx int) string {
	return fmt.Sprintf("location_%d", idx)
}

// === PartitionedRNG ===

// PartitionedRNG derives deterministic, isolated random sources per
// subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName), fed to a PCG
// source. Derivation is stateless, so a PartitionedRNG value may be shared
// across worker goroutines; each call mints a fresh source.
type PartitionedRNG struct {
	key SimulationKey
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) PartitionedRNG {
	return PartitionedRNG{key: key}
}

// SourceFor returns a fresh deterministically-seeded source for the named
// subsystem. The same (key, name) pair always yields an identical stream.
func (p PartitionedRNG) SourceFor(name string) rand.Source {
	seed := uint64(int64(p.key) ^ fnv1a64(name))
	return rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
