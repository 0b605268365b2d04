package sim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Run replays a compiled program against one spin state, in stream order.
// The first failing instruction aborts the run with its index and kind in
// the error.
func Run(st SpinState, prog *Program) error {
	for i, in := range prog.Instructions {
		if in == nil {
			return fmt.Errorf("instruction %d: nil", i)
		}
		if err := in.Apply(st); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", i, in.Kind(), err)
		}
	}
	return nil
}

// RunTrace is Run with magnetization capture: it records the state's
// magnetization after every instruction. On failure the trace collected so
// far is returned alongside the error.
func RunTrace(st SpinState, prog *Program) ([]r3.Vec, error) {
	trace := make([]r3.Vec, 0, len(prog.Instructions))
	for i, in := range prog.Instructions {
		if in == nil {
			return trace, fmt.Errorf("instruction %d: nil", i)
		}
		if err := in.Apply(st); err != nil {
			return trace, fmt.Errorf("instruction %d (%s): %w", i, in.Kind(), err)
		}
		trace = append(trace, st.Magnetization())
	}
	return trace, nil
}
