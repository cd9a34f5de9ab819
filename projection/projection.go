// Package projection defines the common surface of the random projection
// backends and the deterministic generator of the explicit random matrix.
//
// Two backends exist: an explicit Gaussian matrix multiplied on the CPU
// (projection/dense) or on CUDA hardware (projection/cu), and the optical
// processing unit client (package opu), which performs the projection on
// the far side of a socket.
package projection

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Backend maps n-feature sample rows to n-component projected rows.
type Backend interface {
	// Components returns the projected width.
	Components() int

	// Transform projects every row of src. The result has as many rows
	// as src and Components() columns.
	Transform(src *mat.Dense) (*mat.Dense, error)

	// Close releases the backend. Transform after Close is an error.
	Close() error
}

// ErrClosed is returned by Transform on a closed backend.
var ErrClosed = errors.New("projection: backend is closed")

// Stripe is the column granularity of random matrix generation. Entries
// are drawn stripe by stripe from a seed derived per stripe, so the first
// k columns of a wide projection equal a k-wide projection under the same
// seed regardless of how the multiply is blocked.
const Stripe = 64

// Gaussian returns the (features x hi-lo) slab of the infinite random
// matrix for columns [lo, hi). Entries are N(0, 1/features), keeping the
// expected row norm of the projected samples close to the input's.
func Gaussian(seed int64, features, lo, hi int) (*mat.Dense, error) {
	if features <= 0 {
		return nil, fmt.Errorf("projection: gaussian slab for %d features", features)
	}
	if lo < 0 || hi <= lo {
		return nil, fmt.Errorf("projection: gaussian slab columns [%d, %d)", lo, hi)
	}
	out := mat.NewDense(features, hi-lo, nil)
	sigma := 1 / math.Sqrt(float64(features))
	for s := lo / Stripe; s*Stripe < hi; s++ {
		rng := rand.New(rand.NewSource(stripeSeed(seed, s)))
		for c := s * Stripe; c < (s+1)*Stripe; c++ {
			if c < lo || c >= hi {
				// stay in generation order so later columns of the
				// stripe do not depend on the requested range
				for r := 0; r < features; r++ {
					rng.NormFloat64()
				}
				continue
			}
			for r := 0; r < features; r++ {
				out.Set(r, c-lo, rng.NormFloat64()*sigma)
			}
		}
	}
	return out, nil
}

// stripeSeed mixes the user seed with the stripe index.
func stripeSeed(seed int64, stripe int) int64 {
	x := uint64(seed) ^ uint64(stripe)*0x9e3779b97f4a7c15
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	return int64(x)
}
