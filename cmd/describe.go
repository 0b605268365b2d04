package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blochsim/blochsim/sim"
)

var descSequencePath string // Sequence YAML path for describe

// describeCmd compiles a sequence and prints the instruction stream without
// running it, for checking what a sequence file lowers to.
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Compile a sequence and print its instruction stream",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		seq := loadSequence(descSequencePath)
		prog, err := sim.Compile(seq)
		if err != nil {
			logrus.Fatalf("Failed to compile sequence: %v", err)
		}

		counts := prog.Counts()
		fmt.Printf("Sequence     : %s\n", prog.Name)
		fmt.Printf("Fingerprint  : %016x\n", prog.Fingerprint())
		fmt.Printf("RF raster    : %gs\n", prog.RFRaster)
		fmt.Printf("Grad raster  : %gs\n", prog.GradRaster)
		fmt.Printf("Instructions : %d (delay=%d rf=%d readout=%d free_precess=%d)\n",
			len(prog.Instructions),
			counts[sim.OpDelay], counts[sim.OpRF], counts[sim.OpReadout], counts[sim.OpFreePrecess])
		fmt.Printf("Samples      : %d\n", prog.ReadoutSamples())
		fmt.Println()
		for i, in := range prog.Instructions {
			fmt.Printf("%4d  %s\n", i, in.String())
		}
	},
}

func init() {
	describeCmd.Flags().StringVar(&descSequencePath, "sequence", "", "Sequence YAML file (empty = demo sequence)")

	rootCmd.AddCommand(describeCmd)
}
