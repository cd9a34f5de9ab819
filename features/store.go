package features

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/lightonai/doubledescent/datasets"
)

// Extract bundles the output of a feature extraction run: the float
// features, their labels and the boolean encoding for the optical path.
type Extract struct {
	Train datasets.Set
	Test  datasets.Set

	TrainBits *BitMatrix
	TestBits  *BitMatrix

	Threshold float64
}

// flat wire forms; gob cannot see inside mat.Dense or BitMatrix.
type flatSet struct {
	Rows, Cols int
	Data       []float64
	Labels     []byte
}

type flatBits struct {
	Rows, Cols int
	Words      []uint64
}

type flatExtract struct {
	Train, Test         flatSet
	TrainBits, TestBits flatBits
	Threshold           float64
}

func flattenSet(s datasets.Set) flatSet {
	r, c := s.X.Dims()
	raw := s.X.RawMatrix()
	data := raw.Data
	if raw.Stride != c || len(data) != r*c {
		// the set is a view into a larger matrix; repack it
		data = make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			data = append(data, s.X.RawRowView(i)...)
		}
	}
	return flatSet{Rows: r, Cols: c, Data: data, Labels: s.Labels}
}

func unflattenSet(f flatSet) (datasets.Set, error) {
	if f.Rows*f.Cols != len(f.Data) || f.Rows != len(f.Labels) {
		return datasets.Set{}, fmt.Errorf("features: corrupt stored set (%dx%d, %d values, %d labels)",
			f.Rows, f.Cols, len(f.Data), len(f.Labels))
	}
	return datasets.Set{X: mat.NewDense(f.Rows, f.Cols, f.Data), Labels: f.Labels}, nil
}

func flattenBits(b *BitMatrix) flatBits {
	return flatBits{Rows: b.rows, Cols: b.cols, Words: b.words}
}

func unflattenBits(f flatBits) (*BitMatrix, error) {
	b, err := NewBitMatrix(f.Rows, f.Cols)
	if err != nil {
		return nil, err
	}
	if len(f.Words) != len(b.words) {
		return nil, fmt.Errorf("features: corrupt stored bits (%dx%d, %d words)", f.Rows, f.Cols, len(f.Words))
	}
	b.words = f.Words
	return b, nil
}

// WriteFile saves the extract as a gob file.
func (e *Extract) WriteFile(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "features: create extract file")
	}
	enc := gob.NewEncoder(f)
	err = enc.Encode(flatExtract{
		Train:     flattenSet(e.Train),
		Test:      flattenSet(e.Test),
		TrainBits: flattenBits(e.TrainBits),
		TestBits:  flattenBits(e.TestBits),
		Threshold: e.Threshold,
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrap(err, "features: write extract")
}

// ReadFile loads an extract saved by WriteFile.
func ReadFile(name string) (*Extract, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "features: open extract file")
	}
	defer f.Close()
	var flat flatExtract
	if err := gob.NewDecoder(f).Decode(&flat); err != nil {
		return nil, errors.Wrapf(err, "features: decode %s", name)
	}
	out := &Extract{Threshold: flat.Threshold}
	if out.Train, err = unflattenSet(flat.Train); err != nil {
		return nil, err
	}
	if out.Test, err = unflattenSet(flat.Test); err != nil {
		return nil, err
	}
	if out.TrainBits, err = unflattenBits(flat.TrainBits); err != nil {
		return nil, err
	}
	if out.TestBits, err = unflattenBits(flat.TestBits); err != nil {
		return nil, err
	}
	return out, nil
}
