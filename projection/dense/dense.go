// Package dense implements the explicit random matrix projection on the
// CPU. The matrix is never held whole: column blocks are generated on the
// fly, multiplied and discarded, with the block width sized to the L2
// cache and the blocks spread across workers.
package dense

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/lightonai/doubledescent/parallel"
	"github.com/lightonai/doubledescent/projection"
)

// Projector is the CPU dense random projection backend.
type Projector struct {
	features   int
	components int
	seed       int64
	blockCols  int
	workers    int

	mut    sync.Mutex
	closed bool
}

// Option adjusts a Projector.
type Option func(*Projector)

// WithSeed fixes the random matrix seed.
func WithSeed(seed int64) Option {
	return func(p *Projector) { p.seed = seed }
}

// WithBlockCols overrides the cache-derived column block width.
func WithBlockCols(cols int) Option {
	return func(p *Projector) { p.blockCols = cols }
}

// WithWorkers overrides the number of concurrent block multiplies.
func WithWorkers(n int) Option {
	return func(p *Projector) { p.workers = n }
}

// New creates a projector from features-wide rows to components-wide rows.
func New(features, components int, opts ...Option) (*Projector, error) {
	if features <= 0 || components <= 0 {
		return nil, fmt.Errorf("dense: projector shape %d -> %d", features, components)
	}
	p := &Projector{
		features:   features,
		components: components,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.blockCols <= 0 {
		p.blockCols = blockColsFor(features)
	}
	if p.workers <= 0 {
		p.workers = runtime.NumCPU()
	}
	return p, nil
}

// blockColsFor sizes a column block so one generated slab roughly half
// fills the L2 cache.
func blockColsFor(features int) int {
	budget := cpuid.CPU.Cache.L2
	if budget <= 0 {
		budget = 256 << 10
	}
	cols := budget / (features * 8 * 2)
	cols -= cols % projection.Stripe
	if cols < projection.Stripe {
		cols = projection.Stripe
	}
	if cols > 2048 {
		cols = 2048
	}
	return cols
}

// Components returns the projected width.
func (p *Projector) Components() int { return p.components }

// Seed returns the random matrix seed.
func (p *Projector) Seed() int64 { return p.seed }

// Transform projects every row of src to the component space.
func (p *Projector) Transform(src *mat.Dense) (*mat.Dense, error) {
	p.mut.Lock()
	closed := p.closed
	p.mut.Unlock()
	if closed {
		return nil, projection.ErrClosed
	}
	n, c := src.Dims()
	if c != p.features {
		return nil, fmt.Errorf("dense: transform %d-wide rows with a %d-wide projector", c, p.features)
	}
	out := mat.NewDense(n, p.components, nil)

	var errMut sync.Mutex
	var firstErr error
	parallel.Blocks(p.components, p.blockCols, p.workers, func(lo, hi int) {
		slab, err := projection.Gaussian(p.seed, p.features, lo, hi)
		if err != nil {
			errMut.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMut.Unlock()
			return
		}
		dst := out.Slice(0, n, lo, hi).(*mat.Dense)
		dst.Mul(src, slab)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Close marks the projector unusable.
func (p *Projector) Close() error {
	p.mut.Lock()
	p.closed = true
	p.mut.Unlock()
	return nil
}
