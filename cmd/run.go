package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blochsim/blochsim/sim"
	"github.com/blochsim/blochsim/sim/phantom"
	"github.com/blochsim/blochsim/sim/sequence"
)

var (
	// CLI flags for the run subcommand
	sequencePath string  // Sequence YAML path; empty runs the demo sequence
	phantomPath  string  // Phantom YAML path; empty runs the demo phantom
	variant      string  // Spin-state variant
	subSteps     int     // RK4 substeps per raster step (solver variant)
	diffusion    float64 // Diffusion coefficient in m^2/s (diffusion variant)
	bValue       float64 // Prescribed b-value in s/m^2 (diffusion variant)
	t2Star       float64 // Apparent T2* in seconds (t2star variant)
	ensemble     int     // Isochromat count (t2star variant)
	seed         int64   // Seed for stochastic variants
	fieldMode    string  // Off-resonance field map mode (uniform, linear, quadratic)
	fieldScale   float64 // Field map scale in T/m or T/m^2
	workers      int     // Worker goroutines; 0 means GOMAXPROCS
	outPath      string  // Write the dataset to this YAML file
	csvPath      string  // Write the dataset to this CSV file
)

// loadSequence reads the sequence file, or falls back to the built-in demo.
func loadSequence(path string) *sequence.Sequence {
	if path == "" {
		logrus.Info("No sequence file given, using the demo sequence")
		return sequence.Demo()
	}
	seq, err := sequence.Load(path)
	if err != nil {
		logrus.Fatalf("Failed to load sequence %s: %v", path, err)
	}
	return seq
}

// loadPhantom reads the phantom file, or falls back to the built-in demo.
func loadPhantom(path string) phantom.Phantom {
	if path == "" {
		logrus.Info("No phantom file given, using the demo phantom")
		return phantom.Demo()
	}
	ph, err := phantom.Load(path)
	if err != nil {
		logrus.Fatalf("Failed to load phantom %s: %v", path, err)
	}
	return ph
}

// runCmd executes one simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pulse-sequence simulation over a phantom",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		seq := loadSequence(sequencePath)
		ph := loadPhantom(phantomPath)

		prog, err := sim.Compile(seq)
		if err != nil {
			logrus.Fatalf("Failed to compile sequence: %v", err)
		}

		spin := sim.SpinConfig{
			Variant:   variant,
			SubSteps:  subSteps,
			Diffusion: diffusion,
			BValue:    bValue,
			T2Star:    t2Star,
			Ensemble:  ensemble,
			Seed:      seed,
		}
		if err := spin.Validate(); err != nil {
			logrus.Fatalf("Invalid spin config: %v", err)
		}

		fieldCfg := sim.FieldConfig{Mode: fieldMode, Scale: fieldScale}
		if err := fieldCfg.Validate(); err != nil {
			logrus.Fatalf("Invalid field map: %v", err)
		}

		logrus.Infof("Starting simulation: sequence=%s, %d instructions, %d locations",
			prog.Name, len(prog.Instructions), ph.NumLocations())

		ds, err := sim.SimulatePhantom(context.Background(), ph, prog, fieldCfg.Build(), sim.RunOptions{
			Workers: workers,
			Spin:    spin,
		})
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		ds.Print()

		if outPath != "" {
			if err := ds.WriteYAML(outPath); err != nil {
				logrus.Fatalf("Failed to write dataset: %v", err)
			}
			logrus.Infof("Wrote dataset to %s", outPath)
		}
		if csvPath != "" {
			if err := ds.WriteCSV(csvPath); err != nil {
				logrus.Fatalf("Failed to write CSV: %v", err)
			}
			logrus.Infof("Wrote CSV to %s", csvPath)
		}

		logrus.Info("Simulation complete.")
	},
}

// init sets up the run flags and attaches the subcommand
func init() {
	runCmd.Flags().StringVar(&sequencePath, "sequence", "", "Sequence YAML file (empty = demo sequence)")
	runCmd.Flags().StringVar(&phantomPath, "phantom", "", "Phantom YAML file (empty = demo phantom)")

	// Spin-state variant configs
	runCmd.Flags().StringVar(&variant, "variant", "default", "Spin-state variant (default, solver, diffusion, t2star)")
	runCmd.Flags().IntVar(&subSteps, "sub-steps", 0, "RK4 substeps per raster step (solver variant)")
	runCmd.Flags().Float64Var(&diffusion, "diffusion", 0, "Diffusion coefficient in m^2/s (diffusion variant)")
	runCmd.Flags().Float64Var(&bValue, "b-value", 0, "Prescribed diffusion weighting in s/m^2 (diffusion variant)")
	runCmd.Flags().Float64Var(&t2Star, "t2star", 0, "Apparent T2* in seconds (t2star variant)")
	runCmd.Flags().IntVar(&ensemble, "ensemble", 0, "Isochromat count (t2star variant, 0 = default)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for stochastic spin variants")

	// Off-resonance field map configs
	runCmd.Flags().StringVar(&fieldMode, "b0-map", "uniform", "Off-resonance map (uniform, linear, quadratic)")
	runCmd.Flags().Float64Var(&fieldScale, "b0-scale", 0, "Field map scale in T/m or T/m^2 (0 = mode default)")

	runCmd.Flags().IntVar(&workers, "workers", 0, "Worker goroutines (0 = GOMAXPROCS)")
	runCmd.Flags().StringVar(&outPath, "out", "", "Write the full dataset to this YAML file")
	runCmd.Flags().StringVar(&csvPath, "csv", "", "Write the full dataset to this CSV file")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
