package sweep

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/lightonai/doubledescent/datasets"
	"github.com/lightonai/doubledescent/projection/dense"
)

func blobSet(n, p int, seed int64) datasets.Set {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, p, nil)
	labels := make([]byte, n)
	for i := 0; i < n; i++ {
		labels[i] = byte(i % 3)
		for j := 0; j < p; j++ {
			x.Set(i, j, 2*float64(labels[i])+rng.NormFloat64()*0.4)
		}
	}
	return datasets.Set{X: x, Labels: labels}
}

func TestRun(t *testing.T) {
	const p = 12
	train := blobSet(90, p, 1)
	test := blobSet(30, p, 2)

	backend, err := dense.New(p, 128, dense.WithSeed(4))
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	curve, err := Run(backend, train, test, Config{
		Components: []int{64, 8, 16, 128},
		Alpha:      1e-4,
		Classes:    3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(curve) != 4 {
		t.Fatalf("curve has %d points, want 4", len(curve))
	}
	last := 0
	for _, pt := range curve {
		if pt.Components <= last {
			t.Errorf("curve not ascending at %d components", pt.Components)
		}
		last = pt.Components
		if pt.TrainErr < 0 || pt.TrainErr > 1 || pt.TestErr < 0 || pt.TestErr > 1 {
			t.Errorf("errors out of [0,1] at %d components: %v / %v", pt.Components, pt.TrainErr, pt.TestErr)
		}
	}
	// blobs this separable should be learned well at the widest point
	if pt := curve[len(curve)-1]; pt.TrainErr > 0.1 {
		t.Errorf("train error %v at 128 components on separable blobs", pt.TrainErr)
	}
}

func TestRunValidation(t *testing.T) {
	train := blobSet(20, 5, 1)
	test := blobSet(10, 5, 2)
	backend, err := dense.New(5, 32)
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	if _, err := Run(backend, train, test, Config{Alpha: 1, Classes: 3}); err == nil {
		t.Error("empty component list accepted")
	}
	if _, err := Run(backend, train, test, Config{Components: []int{64}, Alpha: 1, Classes: 3}); err == nil {
		t.Error("component count beyond the backend accepted")
	}
	if _, err := Run(backend, train, test, Config{Components: []int{0, 8}, Alpha: 1, Classes: 3}); err == nil {
		t.Error("zero component count accepted")
	}
	if _, err := Run(backend, train, test, Config{Components: []int{8}, Alpha: 1}); err == nil {
		t.Error("zero classes accepted")
	}
}

func TestWriteCSV(t *testing.T) {
	curve := Curve{
		{Components: 8, TrainErr: 0.5, TestErr: 0.6, FitTime: 1500 * time.Microsecond},
		{Components: 16, TrainErr: 0.25, TestErr: 0.4, FitTime: 2 * time.Millisecond},
	}
	var buf bytes.Buffer
	if err := curve.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d csv lines, want 3:\n%s", len(lines), buf.String())
	}
	if lines[0] != "components,train_err,test_err,fit_ms" {
		t.Errorf("header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "8,0.500000,0.600000,1.500") {
		t.Errorf("first point %q", lines[1])
	}
}

func TestPlot(t *testing.T) {
	curve := Curve{
		{Components: 8, TrainErr: 0.5, TestErr: 0.6},
		{Components: 64, TrainErr: 0.1, TestErr: 0.3},
		{Components: 512, TrainErr: 0, TestErr: 0.2},
	}
	name := filepath.Join(t.TempDir(), "curve.png")
	if err := curve.Plot(name); err != nil {
		t.Fatal(err)
	}
	if err := (Curve{}).Plot(name); err == nil {
		t.Error("empty curve plotted")
	}
}
