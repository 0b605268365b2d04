// sim/engine.go
//
// Parallel fan-out over phantom locations. Locations are independent by
// construction: each worker owns its spin states, the compiled program is
// shared read-only, and results land in a per-index slot. The first
// location failure cancels the run; remaining queued work is dropped and
// the partial aggregate is discarded.

package sim

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blochsim/blochsim/sim/phantom"
)

// RunOptions configures a phantom-wide simulation.
type RunOptions struct {
	// Workers caps the worker goroutines; 0 means GOMAXPROCS.
	Workers int

	// Spin selects the spin-state variant for every location.
	Spin SpinConfig

	// Progress, when set, is invoked after each completed location with the
	// completed and total counts. Calls are serialized.
	Progress func(done, total int)
}

// SimulatePhantom runs the compiled program over every phantom location and
// collects the per-location signals. The off-resonance for each location is
// GammaBar times the field map's dB0 value there.
func SimulatePhantom(ctx context.Context, ph phantom.Phantom, prog *Program, field FieldMap, opts RunOptions) (*Dataset, error) {
	if prog == nil {
		return nil, fmt.Errorf("simulate phantom: nil program")
	}
	if field == nil {
		field = NewFieldMap(FieldUniform, 0)
	}
	if err := opts.Spin.Validate(); err != nil {
		return nil, fmt.Errorf("simulate phantom: %w", err)
	}

	total := ph.NumLocations()
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if total > 0 && workers > total {
		workers = total
	}

	start := time.Now()
	signals := make([][]complex128, total)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	indexChan := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	done := 0

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range indexChan {
				if runCtx.Err() != nil {
					continue
				}
				df := GammaBar * field(ph.Location(idx))
				sig, err := SimulateLocation(ph, idx, df, prog, opts.Spin)

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					mu.Unlock()
					continue
				}
				signals[idx] = sig
				done++
				if opts.Progress != nil {
					opts.Progress(done, total)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for idx := 0; idx < total; idx++ {
		select {
		case indexChan <- idx:
		case <-runCtx.Done():
			break feed
		}
	}
	close(indexChan)
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("simulate phantom: %w", firstErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	logrus.Infof("[Engine] simulated %d locations with %d workers in %s", total, workers, elapsed)

	return &Dataset{
		SequenceName:       prog.Name,
		Fingerprint:        prog.Fingerprint(),
		Variant:            variantName(opts.Spin),
		Locations:          total,
		SamplesPerLocation: prog.ReadoutSamples(),
		Workers:            workers,
		Elapsed:            elapsed,
		Signals:            signals,
	}, nil
}

func variantName(cfg SpinConfig) string {
	if cfg.Variant == "" {
		return VariantDefault
	}
	return cfg.Variant
}
