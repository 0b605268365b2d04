package sim

import (
	"encoding/csv"
	"fmt"
	"math/cmplx"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Dataset is the aggregate result of a phantom-wide run: one complex signal
// row per location, index-aligned with the phantom, plus run metadata.
type Dataset struct {
	SequenceName       string
	Fingerprint        uint64
	Variant            string
	Locations          int
	SamplesPerLocation int
	Workers            int
	Elapsed            time.Duration

	Signals [][]complex128
}

// SignalAt returns the signal row of one location.
func (d *Dataset) SignalAt(idx int) []complex128 { return d.Signals[idx] }

// Magnitudes returns the magnitude of every sample of one location.
func (d *Dataset) Magnitudes(idx int) []float64 {
	row := d.Signals[idx]
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = cmplx.Abs(v)
	}
	return out
}

// Aggregate sums the per-location signals sample by sample, the net
// receiver signal of the whole phantom.
func (d *Dataset) Aggregate() []complex128 {
	out := make([]complex128, d.SamplesPerLocation)
	for _, row := range d.Signals {
		for i, v := range row {
			if i < len(out) {
				out[i] += v
			}
		}
	}
	return out
}

// Print writes a human-readable run report to stdout.
func (d *Dataset) Print() {
	fmt.Println("=== Simulation Report ===")
	fmt.Printf("Sequence             : %s (fingerprint %016x)\n", d.SequenceName, d.Fingerprint)
	fmt.Printf("Spin variant         : %s\n", d.Variant)
	fmt.Printf("Locations            : %d\n", d.Locations)
	fmt.Printf("Samples per location : %d\n", d.SamplesPerLocation)
	fmt.Printf("Workers              : %d\n", d.Workers)
	fmt.Printf("Elapsed              : %s\n", d.Elapsed)
	if d.Locations > 0 && d.SamplesPerLocation > 0 {
		agg := d.Aggregate()
		peak := 0.0
		for _, v := range agg {
			if m := cmplx.Abs(v); m > peak {
				peak = m
			}
		}
		fmt.Printf("Peak |signal|        : %.6g\n", peak)
	}
}

// datasetDoc is the YAML export layout.
type datasetDoc struct {
	Sequence    string      `yaml:"sequence"`
	Fingerprint string      `yaml:"fingerprint"`
	Variant     string      `yaml:"variant"`
	Locations   int         `yaml:"locations"`
	Samples     int         `yaml:"samples_per_location"`
	ElapsedMs   float64     `yaml:"elapsed_ms"`
	Signals     []signalDoc `yaml:"signals"`
}

type signalDoc struct {
	Location int       `yaml:"location"`
	Re       []float64 `yaml:"re"`
	Im       []float64 `yaml:"im"`
}

// WriteYAML writes the dataset, signals included, to a YAML file.
func (d *Dataset) WriteYAML(path string) error {
	doc := datasetDoc{
		Sequence:    d.SequenceName,
		Fingerprint: fmt.Sprintf("%016x", d.Fingerprint),
		Variant:     d.Variant,
		Locations:   d.Locations,
		Samples:     d.SamplesPerLocation,
		ElapsedMs:   float64(d.Elapsed) / float64(time.Millisecond),
		Signals:     make([]signalDoc, len(d.Signals)),
	}
	for idx, row := range d.Signals {
		sd := signalDoc{
			Location: idx,
			Re:       make([]float64, len(row)),
			Im:       make([]float64, len(row)),
		}
		for i, v := range row {
			sd.Re[i] = real(v)
			sd.Im[i] = imag(v)
		}
		doc.Signals[idx] = sd
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshaling dataset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	return nil
}

// WriteCSV writes one row per (location, sample) with real, imaginary, and
// magnitude columns.
func (d *Dataset) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"location", "sample", "re", "im", "mag"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for idx, row := range d.Signals {
		for i, v := range row {
			rec := []string{
				strconv.Itoa(idx),
				strconv.Itoa(i),
				strconv.FormatFloat(real(v), 'g', -1, 64),
				strconv.FormatFloat(imag(v), 'g', -1, 64),
				strconv.FormatFloat(cmplx.Abs(v), 'g', -1, 64),
			}
			if err := w.Write(rec); err != nil {
				return fmt.Errorf("writing csv row: %w", err)
			}
		}
	}
	return nil
}
