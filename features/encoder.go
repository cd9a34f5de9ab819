// Package features implements the feature extraction stage of the study:
// a small autoencoder whose hidden activations stand in for convolutional
// features, plus the boolean encoding used by the optical path.
package features

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Encoder is a one-hidden-layer autoencoder. The sigmoid hidden layer is
// the feature map; the linear output layer only exists for training.
type Encoder struct {
	w1 *mat.Dense // hidden x in
	b1 []float64
	w2 *mat.Dense // in x hidden
	b2 []float64

	in     int
	hidden int
}

// TrainConfig carries the SGD knobs for Encoder.Train.
type TrainConfig struct {
	Epochs    int
	BatchSize int
	Rate      float64
	Seed      int64
}

func (c *TrainConfig) defaults() {
	if c.Epochs <= 0 {
		c.Epochs = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.Rate <= 0 {
		c.Rate = 0.1
	}
}

// NewEncoder creates an autoencoder for in-wide samples with the given
// hidden width. Weights are initialized uniformly in ±1/sqrt(fan-in).
func NewEncoder(in, hidden int, seed int64) (*Encoder, error) {
	if in <= 0 || hidden <= 0 {
		return nil, fmt.Errorf("features: encoder dims %dx%d", in, hidden)
	}
	rng := rand.New(rand.NewSource(seed))
	init := func(r, c int) *mat.Dense {
		bound := 1 / math.Sqrt(float64(c))
		w := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				w.Set(i, j, (2*rng.Float64()-1)*bound)
			}
		}
		return w
	}
	return &Encoder{
		w1:     init(hidden, in),
		b1:     make([]float64, hidden),
		w2:     init(in, hidden),
		b2:     make([]float64, in),
		in:     in,
		hidden: hidden,
	}, nil
}

// Hidden returns the feature width produced by Encode.
func (e *Encoder) Hidden() int { return e.hidden }

// Encode maps samples to hidden activations, one feature row per sample.
func (e *Encoder) Encode(x *mat.Dense) (*mat.Dense, error) {
	n, c := x.Dims()
	if c != e.in {
		return nil, fmt.Errorf("features: encode %d-wide samples with a %d-wide encoder", c, e.in)
	}
	h := mat.NewDense(n, e.hidden, nil)
	h.Mul(x, e.w1.T())
	for i := 0; i < n; i++ {
		row := h.RawRowView(i)
		for j := range row {
			row[j] = sigmoid(row[j] + e.b1[j])
		}
	}
	return h, nil
}

// Train runs minibatch SGD on the reconstruction loss and returns the
// mean squared error observed in each epoch.
func (e *Encoder) Train(x *mat.Dense, cfg TrainConfig) ([]float64, error) {
	cfg.defaults()
	n, c := x.Dims()
	if c != e.in {
		return nil, fmt.Errorf("features: train on %d-wide samples with a %d-wide encoder", c, e.in)
	}
	if n == 0 {
		return nil, fmt.Errorf("features: train on an empty set")
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	losses := make([]float64, 0, cfg.Epochs)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		var sum float64
		for lo := 0; lo < n; lo += cfg.BatchSize {
			hi := lo + cfg.BatchSize
			if hi > n {
				hi = n
			}
			sum += e.step(x, order[lo:hi], cfg.Rate)
		}
		losses = append(losses, sum/float64(n))
	}
	return losses, nil
}

// step runs one SGD update on the given sample indices and returns the
// summed per-sample reconstruction error of the batch.
func (e *Encoder) step(x *mat.Dense, idx []int, rate float64) float64 {
	m := len(idx)
	xb := mat.NewDense(m, e.in, nil)
	for k, i := range idx {
		xb.SetRow(k, x.RawRowView(i))
	}

	// forward
	h := mat.NewDense(m, e.hidden, nil)
	h.Mul(xb, e.w1.T())
	for i := 0; i < m; i++ {
		row := h.RawRowView(i)
		for j := range row {
			row[j] = sigmoid(row[j] + e.b1[j])
		}
	}
	y := mat.NewDense(m, e.in, nil)
	y.Mul(h, e.w2.T())
	for i := 0; i < m; i++ {
		row := y.RawRowView(i)
		for j := range row {
			row[j] += e.b2[j]
		}
	}

	// output delta and loss
	var loss float64
	dy := mat.NewDense(m, e.in, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < e.in; j++ {
			d := y.At(i, j) - xb.At(i, j)
			loss += d * d
			dy.Set(i, j, d/float64(m))
		}
	}

	// hidden delta through the sigmoid
	dh := mat.NewDense(m, e.hidden, nil)
	dh.Mul(dy, e.w2)
	for i := 0; i < m; i++ {
		for j := 0; j < e.hidden; j++ {
			s := h.At(i, j)
			dh.Set(i, j, dh.At(i, j)*s*(1-s))
		}
	}

	// gradients
	gw2 := mat.NewDense(e.in, e.hidden, nil)
	gw2.Mul(dy.T(), h)
	gw1 := mat.NewDense(e.hidden, e.in, nil)
	gw1.Mul(dh.T(), xb)

	e.w2.Sub(e.w2, scaled(gw2, rate))
	e.w1.Sub(e.w1, scaled(gw1, rate))
	for j := 0; j < e.in; j++ {
		var g float64
		for i := 0; i < m; i++ {
			g += dy.At(i, j)
		}
		e.b2[j] -= rate * g
	}
	for j := 0; j < e.hidden; j++ {
		var g float64
		for i := 0; i < m; i++ {
			g += dh.At(i, j)
		}
		e.b1[j] -= rate * g
	}
	return loss / float64(e.in)
}

func scaled(m *mat.Dense, f float64) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
