// Package ridge implements the linear readout of the study: multi-class
// ridge regression on one-hot targets.
package ridge

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/lightonai/doubledescent/datasets"
)

// Model is a fitted ridge classifier.
type Model struct {
	coef    *mat.Dense // features x classes
	classes int
}

// Fit solves the regularized least squares problem on one-hot targets.
// With more samples than features the primal normal equations are used;
// past the interpolation threshold the dual form takes over, which gives
// the minimum-norm interpolating solution as alpha approaches zero.
func Fit(x *mat.Dense, labels []byte, classes int, alpha float64) (*Model, error) {
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return nil, fmt.Errorf("ridge: fit on an empty %dx%d matrix", n, p)
	}
	if len(labels) != n {
		return nil, fmt.Errorf("ridge: %d samples but %d labels", n, len(labels))
	}
	if alpha <= 0 {
		return nil, fmt.Errorf("ridge: alpha %v must be positive", alpha)
	}
	y, err := datasets.OneHot(labels, classes)
	if err != nil {
		return nil, err
	}

	coef := mat.NewDense(p, classes, nil)
	if p <= n {
		// (XᵀX + aI) W = XᵀY
		gram := mat.NewSymDense(p, nil)
		gram.SymOuterK(1, x.T())
		addToDiag(gram, alpha)
		var rhs mat.Dense
		rhs.Mul(x.T(), y)
		if err := solveSPD(coef, gram, &rhs); err != nil {
			return nil, err
		}
	} else {
		// W = Xᵀ (XXᵀ + aI)⁻¹ Y
		gram := mat.NewSymDense(n, nil)
		gram.SymOuterK(1, x)
		addToDiag(gram, alpha)
		dual := mat.NewDense(n, classes, nil)
		if err := solveSPD(dual, gram, y); err != nil {
			return nil, err
		}
		coef.Mul(x.T(), dual)
	}
	return &Model{coef: coef, classes: classes}, nil
}

func addToDiag(s *mat.SymDense, alpha float64) {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+alpha)
	}
}

// solveSPD solves gram * dst = rhs by Cholesky, falling back to a dense
// solve when the factorization loses positive definiteness to rounding.
func solveSPD(dst *mat.Dense, gram *mat.SymDense, rhs mat.Matrix) error {
	var chol mat.Cholesky
	if chol.Factorize(gram) {
		if err := chol.SolveTo(dst, rhs); err == nil {
			return nil
		}
	}
	var g mat.Dense
	g.CloneFrom(gram)
	if err := dst.Solve(&g, rhs); err != nil {
		return fmt.Errorf("ridge: normal equations are singular: %v", err)
	}
	return nil
}

// Classes returns the number of classes the model was fitted with.
func (m *Model) Classes() int { return m.classes }

// Coef returns the coefficient matrix, one column per class.
func (m *Model) Coef() *mat.Dense { return m.coef }

// Predict returns the argmax class per row of x.
func (m *Model) Predict(x *mat.Dense) ([]byte, error) {
	_, c := x.Dims()
	if p, _ := m.coef.Dims(); c != p {
		return nil, fmt.Errorf("ridge: predict on %d features, model has %d", c, p)
	}
	var scores mat.Dense
	scores.Mul(x, m.coef)
	n, _ := scores.Dims()
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		row := scores.RawRowView(i)
		best := 0
		for j := 1; j < m.classes; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[i] = byte(best)
	}
	return out, nil
}

// Accuracy returns the fraction of rows whose predicted class matches.
func (m *Model) Accuracy(x *mat.Dense, labels []byte) (float64, error) {
	pred, err := m.Predict(x)
	if err != nil {
		return 0, err
	}
	if len(pred) != len(labels) {
		return 0, fmt.Errorf("ridge: %d predictions but %d labels", len(pred), len(labels))
	}
	if len(labels) == 0 {
		return 0, fmt.Errorf("ridge: accuracy of an empty set")
	}
	var hits int
	for i, p := range pred {
		if p == labels[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(labels)), nil
}
