package features

import (
	"fmt"
	"math/bits"

	"gonum.org/v1/gonum/mat"
)

// BitMatrix is a row-major bit-packed boolean matrix. Every row is padded
// to a whole number of 64-bit words, so rows can be handed to the optical
// transport without re-packing.
type BitMatrix struct {
	rows, cols int
	wpr        int // words per row
	words      []uint64
}

// NewBitMatrix returns an all-zero bit matrix of the given shape.
func NewBitMatrix(rows, cols int) (*BitMatrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("features: bit matrix shape %dx%d", rows, cols)
	}
	wpr := (cols + 63) / 64
	return &BitMatrix{
		rows:  rows,
		cols:  cols,
		wpr:   wpr,
		words: make([]uint64, rows*wpr),
	}, nil
}

// Binarize thresholds a feature matrix into a bit matrix: a bit is set
// where the feature value is strictly greater than threshold.
func Binarize(x mat.Matrix, threshold float64) (*BitMatrix, error) {
	r, c := x.Dims()
	b, err := NewBitMatrix(r, c)
	if err != nil {
		return nil, err
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if x.At(i, j) > threshold {
				b.Set(i, j)
			}
		}
	}
	return b, nil
}

// Rows returns the number of rows.
func (b *BitMatrix) Rows() int { return b.rows }

// Cols returns the number of bit columns, excluding padding.
func (b *BitMatrix) Cols() int { return b.cols }

// WordsPerRow returns the padded row width in 64-bit words.
func (b *BitMatrix) WordsPerRow() int { return b.wpr }

// Row returns the packed words of row i. The slice aliases the matrix.
func (b *BitMatrix) Row(i int) []uint64 {
	return b.words[i*b.wpr : (i+1)*b.wpr]
}

// Bit reports whether bit (i, j) is set. It panics when the index is out
// of range, including the padding bits past Cols.
func (b *BitMatrix) Bit(i, j int) bool {
	b.check(i, j)
	return b.words[i*b.wpr+j/64]&(1<<(uint(j)%64)) != 0
}

// Set sets bit (i, j). It panics when the index is out of range; padding
// bits stay zero so packed rows stay canonical on the wire.
func (b *BitMatrix) Set(i, j int) {
	b.check(i, j)
	b.words[i*b.wpr+j/64] |= 1 << (uint(j) % 64)
}

func (b *BitMatrix) check(i, j int) {
	if i < 0 || i >= b.rows || j < 0 || j >= b.cols {
		panic(fmt.Sprintf("features: bit (%d, %d) out of a %dx%d matrix", i, j, b.rows, b.cols))
	}
}

// CountOnes returns the number of set bits across the whole matrix.
func (b *BitMatrix) CountOnes() int {
	var n int
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Float unpacks the matrix into 0/1 float64 values.
func (b *BitMatrix) Float() *mat.Dense {
	out := mat.NewDense(b.rows, b.cols, nil)
	for i := 0; i < b.rows; i++ {
		row := out.RawRowView(i)
		for j := 0; j < b.cols; j++ {
			if b.Bit(i, j) {
				row[j] = 1
			}
		}
	}
	return out
}
