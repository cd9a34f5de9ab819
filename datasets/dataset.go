// Package datasets implements the shared sample containers of the double
// descent study.
package datasets

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Set pairs a matrix of row samples with one label per row.
type Set struct {
	X      *mat.Dense
	Labels []byte
}

// Len returns the number of samples in the set.
func (s Set) Len() int {
	if s.X == nil {
		return 0
	}
	r, _ := s.X.Dims()
	return r
}

// Features returns the sample width.
func (s Set) Features() int {
	if s.X == nil {
		return 0
	}
	_, c := s.X.Dims()
	return c
}

// Shuffle permutes samples in place, keeping each label attached to its row.
func (s Set) Shuffle(rng *rand.Rand) {
	n := s.Len()
	if n < 2 {
		return
	}
	_, c := s.X.Dims()
	tmp := make([]float64, c)
	rng.Shuffle(n, func(i, j int) {
		copy(tmp, s.X.RawRowView(i))
		s.X.SetRow(i, s.X.RawRowView(j))
		s.X.SetRow(j, tmp)
		s.Labels[i], s.Labels[j] = s.Labels[j], s.Labels[i]
	})
}

// Head returns a view of the first n samples. It shares backing storage
// with the receiver.
func (s Set) Head(n int) (Set, error) {
	if n < 0 || n > s.Len() {
		return Set{}, fmt.Errorf("datasets: head of %d from a set of %d samples", n, s.Len())
	}
	_, c := s.X.Dims()
	return Set{
		X:      s.X.Slice(0, n, 0, c).(*mat.Dense),
		Labels: s.Labels[:n],
	}, nil
}

// Split cuts the set into the first n samples and the rest. Both halves
// share backing storage with the receiver.
func (s Set) Split(n int) (head, tail Set, err error) {
	if n < 0 || n > s.Len() {
		return Set{}, Set{}, fmt.Errorf("datasets: split at %d of a set of %d samples", n, s.Len())
	}
	r, c := s.X.Dims()
	head = Set{X: s.X.Slice(0, n, 0, c).(*mat.Dense), Labels: s.Labels[:n]}
	tail = Set{X: s.X.Slice(n, r, 0, c).(*mat.Dense), Labels: s.Labels[n:]}
	return head, tail, nil
}

// OneHot expands labels into a (len(labels), classes) indicator matrix.
// Labels outside [0, classes) are an error.
func OneHot(labels []byte, classes int) (*mat.Dense, error) {
	if classes <= 0 {
		return nil, fmt.Errorf("datasets: one-hot with %d classes", classes)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("datasets: one-hot of an empty label slice")
	}
	y := mat.NewDense(len(labels), classes, nil)
	for i, l := range labels {
		if int(l) >= classes {
			return nil, fmt.Errorf("datasets: label %d at row %d exceeds %d classes", l, i, classes)
		}
		y.Set(i, int(l), 1)
	}
	return y, nil
}
