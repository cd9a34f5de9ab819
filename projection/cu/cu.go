//go:build cgo

// Package cu implements the dense random projection on CUDA hardware
// through the gorgonia bindings. The random matrix is staged to the
// device in column blocks sized from the device memory, so arbitrarily
// wide projections fit.
package cu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/cu"

	"github.com/lightonai/doubledescent/projection"
	"github.com/lightonai/doubledescent/projection/cu/kernel"
)

const tile = 16

// Projector is the CUDA dense random projection backend.
type Projector struct {
	features   int
	components int
	seed       int64
	blockCols  int

	ctx    cu.CUContext
	fn     cu.Function
	stream cu.Stream

	mut    sync.Mutex
	closed bool
}

// Option adjusts a Projector.
type Option func(*Projector)

// WithSeed fixes the random matrix seed.
func WithSeed(seed int64) Option {
	return func(p *Projector) { p.seed = seed }
}

// WithBlockCols overrides the memory-derived column block width.
func WithBlockCols(cols int) Option {
	return func(p *Projector) { p.blockCols = cols }
}

// New initializes device 0 and loads the projection kernel.
func New(features, components int, opts ...Option) (*Projector, error) {
	if features <= 0 || components <= 0 {
		return nil, fmt.Errorf("cu: projector shape %d -> %d", features, components)
	}
	p := &Projector{features: features, components: components}
	for _, opt := range opts {
		opt(p)
	}

	device, err := cu.GetDevice(0)
	if err != nil {
		return nil, errors.Wrap(err, "cu: get device")
	}
	ctx, err := device.MakeContext(cu.SchedAuto)
	if err != nil {
		return nil, errors.Wrap(err, "cu: make context")
	}
	if err := ctx.Lock(); err != nil {
		return nil, errors.Wrap(err, "cu: lock context")
	}
	if p.blockCols <= 0 {
		mem, err := device.TotalMem()
		if err != nil || mem <= 0 {
			mem = 1 << 30
		}
		p.blockCols = blockColsFor(features, mem)
	}
	mod, err := cu.LoadData(kernel.PTXMatMul)
	if err != nil {
		return nil, errors.Wrap(err, "cu: load kernel")
	}
	fn, err := mod.Function("matmul")
	if err != nil {
		return nil, errors.Wrap(err, "cu: kernel function")
	}
	stream, err := cu.MakeStream(cu.DefaultStream)
	if err != nil {
		return nil, errors.Wrap(err, "cu: make stream")
	}
	p.ctx = ctx
	p.fn = fn
	p.stream = stream
	return p, nil
}

// blockColsFor keeps one staged slab under 1/16 of device memory.
func blockColsFor(features int, mem int64) int {
	cols := int(mem / 16 / int64(features*4))
	cols -= cols % projection.Stripe
	if cols < projection.Stripe {
		cols = projection.Stripe
	}
	if cols > 1<<16 {
		cols = 1 << 16
	}
	return cols
}

// Components returns the projected width.
func (p *Projector) Components() int { return p.components }

// Transform projects every row of src through the device.
func (p *Projector) Transform(src *mat.Dense) (*mat.Dense, error) {
	p.mut.Lock()
	defer p.mut.Unlock()
	if p.closed {
		return nil, projection.ErrClosed
	}
	n, c := src.Dims()
	if c != p.features {
		return nil, fmt.Errorf("cu: transform %d-wide rows with a %d-wide projector", c, p.features)
	}
	if err := cu.SetCurrentContext(p.ctx); err != nil {
		return nil, errors.Wrap(err, "cu: set context")
	}

	in32 := make([]float32, n*p.features)
	for i := 0; i < n; i++ {
		row := src.RawRowView(i)
		for j, v := range row {
			in32[i*p.features+j] = float32(v)
		}
	}
	out32 := make([]float32, n*p.components)
	slab32 := make([]float32, p.features*p.blockCols)

	inSize := int64(len(in32)) * 4
	outSize := int64(len(out32)) * 4
	slabSize := int64(len(slab32)) * 4

	dIn, err := cu.MemAlloc(inSize)
	if err != nil {
		return nil, errors.Wrap(err, "cu: alloc input")
	}
	defer cu.MemFree(dIn)
	dOut, err := cu.MemAlloc(outSize)
	if err != nil {
		return nil, errors.Wrap(err, "cu: alloc output")
	}
	defer cu.MemFree(dOut)
	dSlab, err := cu.MemAlloc(slabSize)
	if err != nil {
		return nil, errors.Wrap(err, "cu: alloc slab")
	}
	defer cu.MemFree(dSlab)

	if err := cu.MemcpyHtoD(dIn, unsafe.Pointer(&in32[0]), inSize); err != nil {
		return nil, errors.Wrap(err, "cu: stage input")
	}

	for lo := 0; lo < p.components; lo += p.blockCols {
		hi := lo + p.blockCols
		if hi > p.components {
			hi = p.components
		}
		bc := hi - lo
		slab, err := projection.Gaussian(p.seed, p.features, lo, hi)
		if err != nil {
			return nil, err
		}
		for r := 0; r < p.features; r++ {
			for cc := 0; cc < bc; cc++ {
				slab32[r*bc+cc] = float32(slab.At(r, cc))
			}
		}
		if err := cu.MemcpyHtoD(dSlab, unsafe.Pointer(&slab32[0]), int64(p.features*bc)*4); err != nil {
			return nil, errors.Wrap(err, "cu: stage slab")
		}

		var (
			un   = uint32(n)
			uf   = uint32(p.features)
			ubc  = uint32(bc)
			uldc = uint32(p.components)
			uc0  = uint32(lo)
		)
		args := []unsafe.Pointer{
			unsafe.Pointer(&dIn),
			unsafe.Pointer(&dSlab),
			unsafe.Pointer(&dOut),
			unsafe.Pointer(&un),
			unsafe.Pointer(&uf),
			unsafe.Pointer(&ubc),
			unsafe.Pointer(&uldc),
			unsafe.Pointer(&uc0),
		}
		gx := (bc + tile - 1) / tile
		gy := (n + tile - 1) / tile
		if err := p.fn.LaunchAndSync(gx, gy, 1, tile, tile, 1, 0, p.stream, args); err != nil {
			return nil, errors.Wrapf(err, "cu: launch block [%d, %d)", lo, hi)
		}
	}

	if err := cu.MemcpyDtoH(unsafe.Pointer(&out32[0]), dOut, outSize); err != nil {
		return nil, errors.Wrap(err, "cu: read output")
	}
	out := mat.NewDense(n, p.components, nil)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] = float64(out32[i*p.components+j])
		}
	}
	return out, nil
}

// Close releases the device context. The loaded module and the stream
// belong to the context and are torn down with it.
func (p *Projector) Close() error {
	p.mut.Lock()
	defer p.mut.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.ctx.Unlock()
	p.ctx.Destroy()
	return nil
}
