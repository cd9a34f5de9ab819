package parallel

import (
	"sync"
	"sync/atomic"
	"testing"
)

// every index runs exactly once
func TestForEachCoversAll(t *testing.T) {
	for _, length := range []int{0, 1, 7, 64, 1000} {
		for _, limit := range []int{0, 1, 3, 16} {
			seen := make([]int32, length)
			ForEach(length, limit, func(i int) {
				atomic.AddInt32(&seen[i], 1)
			})
			for i, n := range seen {
				if n != 1 {
					t.Errorf("length=%d limit=%d: index %d ran %d times", length, limit, i, n)
				}
			}
		}
	}
}

func TestForEachLimit(t *testing.T) {
	const length = 200
	const limit = 4
	var cur, peak int32
	ForEach(length, limit, func(i int) {
		n := atomic.AddInt32(&cur, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&cur, -1)
	})
	if peak > limit {
		t.Errorf("observed %d concurrent bodies, limit %d", peak, limit)
	}
}

func TestBlocks(t *testing.T) {
	testCases := []struct {
		name    string
		n, size int
	}{
		{"exact", 64, 16},
		{"ragged", 65, 16},
		{"single", 5, 100},
		{"unit", 7, 1},
		{"zero size", 10, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var mut sync.Mutex
			covered := make([]bool, tc.n)
			Blocks(tc.n, tc.size, 4, func(lo, hi int) {
				if lo >= hi {
					t.Errorf("empty span [%d,%d)", lo, hi)
				}
				mut.Lock()
				for i := lo; i < hi; i++ {
					if covered[i] {
						t.Errorf("index %d covered twice", i)
					}
					covered[i] = true
				}
				mut.Unlock()
			})
			for i, ok := range covered {
				if !ok {
					t.Errorf("index %d not covered", i)
				}
			}
		})
	}
}
