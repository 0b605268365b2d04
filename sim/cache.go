package sim

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blochsim/blochsim/sim/sequence"
)

// ProgramCache memoizes compiled programs by sequence fingerprint so that
// repeated runs of the same sequence pay compilation once. Safe for
// concurrent use; two goroutines racing on a miss both compile and one
// result wins, which is harmless because compilation is deterministic.
type ProgramCache struct {
	cache *lru.Cache[uint64, *Program]
}

// NewProgramCache creates a cache holding up to size programs.
func NewProgramCache(size int) (*ProgramCache, error) {
	c, err := lru.New[uint64, *Program](size)
	if err != nil {
		return nil, fmt.Errorf("creating program cache: %w", err)
	}
	return &ProgramCache{cache: c}, nil
}

// Get returns the cached program for the sequence, compiling on a miss.
func (pc *ProgramCache) Get(seq *sequence.Sequence) (*Program, error) {
	key := seq.Fingerprint()
	if prog, ok := pc.cache.Get(key); ok {
		return prog, nil
	}
	prog, err := Compile(seq)
	if err != nil {
		return nil, err
	}
	pc.cache.Add(key, prog)
	return prog, nil
}

// Len reports how many programs are cached.
func (pc *ProgramCache) Len() int { return pc.cache.Len() }

// Purge drops every cached program.
func (pc *ProgramCache) Purge() { pc.cache.Purge() }
