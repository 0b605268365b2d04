package sim

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func sampleDataset() *Dataset {
	return &Dataset{
		SequenceName:       "demo-fid",
		Fingerprint:        0xdeadbeef,
		Variant:            "default",
		Locations:          2,
		SamplesPerLocation: 3,
		Workers:            2,
		Elapsed:            15 * time.Millisecond,
		Signals: [][]complex128{
			{1 + 0i, 0 + 1i, -1 + 0i},
			{1 + 0i, 0 - 1i, 1 + 0i},
		},
	}
}

func TestDataset_Aggregate(t *testing.T) {
	ds := sampleDataset()
	agg := ds.Aggregate()
	assert.Equal(t, []complex128{2 + 0i, 0 + 0i, 0 + 0i}, agg)
}

func TestDataset_AggregateToleratesShortRows(t *testing.T) {
	ds := sampleDataset()
	ds.Signals[1] = ds.Signals[1][:1]
	agg := ds.Aggregate()
	assert.Len(t, agg, 3)
	assert.Equal(t, 2+0i, agg[0])
	assert.Equal(t, 0+1i, agg[1])
}

func TestDataset_WriteYAMLRoundTrip(t *testing.T) {
	ds := sampleDataset()
	path := filepath.Join(t.TempDir(), "out.yaml")
	assert.NoError(t, ds.WriteYAML(path))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)

	var doc datasetDoc
	assert.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "demo-fid", doc.Sequence)
	assert.Equal(t, "00000000deadbeef", doc.Fingerprint)
	assert.Equal(t, "default", doc.Variant)
	assert.Equal(t, 2, doc.Locations)
	assert.Equal(t, 3, doc.Samples)
	assert.Equal(t, 15.0, doc.ElapsedMs)
	assert.Len(t, doc.Signals, 2)
	assert.Equal(t, 1, doc.Signals[1].Location)
	assert.Equal(t, []float64{1, 0, -1}, doc.Signals[0].Re)
	assert.Equal(t, []float64{0, -1, 0}, doc.Signals[1].Im)
}

func TestDataset_WriteCSV(t *testing.T) {
	ds := sampleDataset()
	path := filepath.Join(t.TempDir(), "out.csv")
	assert.NoError(t, ds.WriteCSV(path))

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	assert.NoError(t, err)
	// header plus one row per (location, sample)
	assert.Len(t, rows, 1+2*3)
	assert.Equal(t, []string{"location", "sample", "re", "im", "mag"}, rows[0])
	assert.Equal(t, []string{"0", "0", "1", "0", "1"}, rows[1])
	assert.Equal(t, []string{"0", "1", "0", "1", "1"}, rows[2])
	assert.Equal(t, []string{"1", "0", "1", "0", "1"}, rows[4])
}

func TestDataset_SignalAt(t *testing.T) {
	ds := sampleDataset()
	assert.Equal(t, []complex128{1 + 0i, 0 - 1i, 1 + 0i}, ds.SignalAt(1))
}

func TestDataset_Magnitudes(t *testing.T) {
	ds := sampleDataset()
	assert.Equal(t, []float64{1, 1, 1}, ds.Magnitudes(0))
}
