// Package sweep orchestrates the double descent experiment: project once
// to the widest component count, then fit the readout on growing column
// prefixes and record the error curve.
package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/lightonai/doubledescent/datasets"
	"github.com/lightonai/doubledescent/projection"
	"github.com/lightonai/doubledescent/ridge"
)

// Config carries the experiment knobs.
type Config struct {
	// Components lists the feature counts to evaluate. It is sorted in
	// place; the largest entry must not exceed the backend width.
	Components []int

	// Alpha is the ridge penalty.
	Alpha float64

	// Classes is the number of label classes.
	Classes int

	// Verbose logs one line per evaluated point.
	Verbose bool
}

// Point is one evaluated position on the curve.
type Point struct {
	Components int
	TrainErr   float64
	TestErr    float64
	FitTime    time.Duration
}

// Curve is the evaluated double descent curve, ascending in components.
type Curve []Point

// Run projects the train and test sets through the backend and evaluates
// every requested component count.
func Run(backend projection.Backend, train, test datasets.Set, cfg Config) (Curve, error) {
	if len(cfg.Components) == 0 {
		return nil, fmt.Errorf("sweep: no component counts requested")
	}
	if cfg.Classes <= 0 {
		return nil, fmt.Errorf("sweep: %d classes", cfg.Classes)
	}
	sort.Ints(cfg.Components)
	if cfg.Components[0] <= 0 {
		return nil, fmt.Errorf("sweep: component count %d", cfg.Components[0])
	}
	if maxK := cfg.Components[len(cfg.Components)-1]; maxK > backend.Components() {
		return nil, fmt.Errorf("sweep: %d components requested from a %d-wide backend", maxK, backend.Components())
	}

	start := time.Now()
	trainProj, err := backend.Transform(train.X)
	if err != nil {
		return nil, err
	}
	testProj, err := backend.Transform(test.X)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		log.Printf("projected %d+%d samples to %d components in %v",
			train.Len(), test.Len(), backend.Components(), time.Since(start).Round(time.Millisecond))
	}

	curve := make(Curve, 0, len(cfg.Components))
	nTrain, _ := trainProj.Dims()
	nTest, _ := testProj.Dims()
	for _, k := range cfg.Components {
		trainK := trainProj.Slice(0, nTrain, 0, k).(*mat.Dense)
		testK := testProj.Slice(0, nTest, 0, k).(*mat.Dense)

		fitStart := time.Now()
		model, err := ridge.Fit(trainK, train.Labels, cfg.Classes, cfg.Alpha)
		if err != nil {
			return nil, fmt.Errorf("sweep: fit at %d components: %v", k, err)
		}
		fitTime := time.Since(fitStart)

		trainAcc, err := model.Accuracy(trainK, train.Labels)
		if err != nil {
			return nil, err
		}
		testAcc, err := model.Accuracy(testK, test.Labels)
		if err != nil {
			return nil, err
		}
		p := Point{
			Components: k,
			TrainErr:   1 - trainAcc,
			TestErr:    1 - testAcc,
			FitTime:    fitTime,
		}
		curve = append(curve, p)
		if cfg.Verbose {
			log.Printf("components=%d train_err=%.4f test_err=%.4f fit_ms=%.1f",
				p.Components, p.TrainErr, p.TestErr, float64(p.FitTime.Microseconds())/1000)
		}
	}
	return curve, nil
}

// WriteCSV writes the curve with a header row.
func (c Curve) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"components", "train_err", "test_err", "fit_ms"}); err != nil {
		return err
	}
	for _, p := range c {
		rec := []string{
			strconv.Itoa(p.Components),
			strconv.FormatFloat(p.TrainErr, 'f', 6, 64),
			strconv.FormatFloat(p.TestErr, 'f', 6, 64),
			strconv.FormatFloat(float64(p.FitTime.Microseconds())/1000, 'f', 3, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the curve to a file.
func (c Curve) WriteCSVFile(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	err = c.WriteCSV(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
