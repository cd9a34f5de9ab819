package features

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBinarizeRoundTrip(t *testing.T) {
	// 65 columns forces a second word per row
	const rows, cols = 3, 65
	x := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if (i+j)%3 == 0 {
				x.Set(i, j, 1)
			}
		}
	}
	b, err := Binarize(x, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if b.Rows() != rows || b.Cols() != cols || b.WordsPerRow() != 2 {
		t.Fatalf("shape %dx%d with %d words per row", b.Rows(), b.Cols(), b.WordsPerRow())
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			want := (i+j)%3 == 0
			if b.Bit(i, j) != want {
				t.Fatalf("bit (%d,%d) = %v, want %v", i, j, b.Bit(i, j), want)
			}
		}
	}
	f := b.Float()
	if !mat.Equal(f, x) {
		t.Error("Float() did not reproduce the thresholded input")
	}
	wantOnes := 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if (i+j)%3 == 0 {
				wantOnes++
			}
		}
	}
	if b.CountOnes() != wantOnes {
		t.Errorf("CountOnes = %d, want %d", b.CountOnes(), wantOnes)
	}
}

func TestBinarizeThresholdStrict(t *testing.T) {
	x := mat.NewDense(1, 2, []float64{0.5, 0.500001})
	b, err := Binarize(x, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if b.Bit(0, 0) {
		t.Error("value equal to threshold was set")
	}
	if !b.Bit(0, 1) {
		t.Error("value above threshold was not set")
	}
}

func FuzzBitSetGet(f *testing.F) {
	f.Add(uint8(3), uint8(70), uint16(2), uint16(65))
	f.Add(uint8(1), uint8(1), uint16(0), uint16(0))
	f.Fuzz(func(t *testing.T, rows, cols uint8, i, j uint16) {
		if rows == 0 || cols == 0 {
			t.Skip()
		}
		b, err := NewBitMatrix(int(rows), int(cols))
		if err != nil {
			t.Fatal(err)
		}
		r := int(i) % int(rows)
		c := int(j) % int(cols)
		b.Set(r, c)
		if !b.Bit(r, c) {
			t.Fatalf("bit (%d,%d) not set in a %dx%d matrix", r, c, rows, cols)
		}
		if b.CountOnes() != 1 {
			t.Fatalf("CountOnes = %d after one Set", b.CountOnes())
		}
	})
}

// setting a padding bit must panic instead of corrupting the packed row
func TestBitMatrixRejectsPaddingBits(t *testing.T) {
	b, err := NewBitMatrix(2, 10)
	if err != nil {
		t.Fatal(err)
	}
	mustPanic := func(name string, f func()) {
		defer func() {
			if recover() == nil {
				t.Errorf("%s on an out-of-range index did not panic", name)
			}
		}()
		f()
	}
	mustPanic("Set", func() { b.Set(0, 13) })
	mustPanic("Set", func() { b.Set(2, 0) })
	mustPanic("Bit", func() { _ = b.Bit(0, -1) })
	if b.CountOnes() != 0 {
		t.Error("rejected writes still changed the matrix")
	}
}

func TestBitMatrixRowAliases(t *testing.T) {
	b, err := NewBitMatrix(2, 10)
	if err != nil {
		t.Fatal(err)
	}
	b.Set(1, 9)
	row := b.Row(1)
	if len(row) != 1 || row[0] != 1<<9 {
		t.Errorf("row words = %v", row)
	}
	if _, err := NewBitMatrix(0, 3); err == nil {
		t.Error("empty shape accepted")
	}
}
