package features

import (
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/lightonai/doubledescent/datasets"
)

func TestExtractRoundTrip(t *testing.T) {
	train := datasets.Set{
		X:      mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
		Labels: []byte{0, 1},
	}
	test := datasets.Set{
		X:      mat.NewDense(1, 3, []float64{7, 8, 9}),
		Labels: []byte{2},
	}
	trainBits, err := Binarize(train.X, 3.5)
	if err != nil {
		t.Fatal(err)
	}
	testBits, err := Binarize(test.X, 3.5)
	if err != nil {
		t.Fatal(err)
	}
	in := &Extract{Train: train, Test: test, TrainBits: trainBits, TestBits: testBits, Threshold: 3.5}

	name := filepath.Join(t.TempDir(), "extract.gob")
	if err := in.WriteFile(name); err != nil {
		t.Fatal(err)
	}
	out, err := ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(out.Train.X, train.X) || !mat.Equal(out.Test.X, test.X) {
		t.Error("feature matrices changed across the round trip")
	}
	if out.Train.Labels[1] != 1 || out.Test.Labels[0] != 2 {
		t.Error("labels changed across the round trip")
	}
	if out.Threshold != 3.5 {
		t.Errorf("threshold came back as %v", out.Threshold)
	}
	if out.TrainBits.CountOnes() != trainBits.CountOnes() {
		t.Error("bit planes changed across the round trip")
	}
	if !out.TestBits.Bit(0, 0) || !out.TestBits.Bit(0, 2) {
		t.Error("test bits lost values")
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "none.gob")); err == nil {
		t.Error("missing file accepted")
	}
}
