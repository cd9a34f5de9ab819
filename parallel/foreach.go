// Package parallel contains the bounded concurrency helpers used by the
// projection and feature stages.
package parallel

import "sync"

// ForEach executes body(i) for every i in [0, length) using at most
// limit concurrent goroutines.
func ForEach(length, limit int, body func(i int)) {
	if length <= 0 {
		return
	}
	if limit <= 0 || limit > length {
		limit = length
	}

	var (
		next int
		mut  sync.Mutex
		wg   sync.WaitGroup
	)
	wg.Add(limit)
	for w := 0; w < limit; w++ {
		go func() {
			defer wg.Done()
			for {
				mut.Lock()
				i := next
				next++
				mut.Unlock()
				if i >= length {
					return
				}
				body(i)
			}
		}()
	}
	wg.Wait()
}

// Blocks splits [0, n) into contiguous spans of at most size elements and
// executes body(lo, hi) for each span, running at most limit spans
// concurrently. Each element belongs to exactly one span.
func Blocks(n, size, limit int, body func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if size <= 0 {
		size = n
	}
	count := (n + size - 1) / size
	ForEach(count, limit, func(b int) {
		lo := b * size
		hi := lo + size
		if hi > n {
			hi = n
		}
		body(lo, hi)
	})
}
