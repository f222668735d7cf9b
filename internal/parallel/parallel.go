// Package parallel runs independent per-sequence work on a bounded set of
// goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Config controls parallel execution behavior.
type Config struct {
	Workers int // Number of worker goroutines; 1 or less runs inline.
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU()}
}

// For executes f(i) for i in [0, n).
//
// Workers pull the next index as they finish, so uneven items (sequences
// of different length) balance across goroutines. f must be safe to call
// concurrently for distinct i.
func For(n int, f func(i int), cfg Config) {
	workers := min(cfg.Workers, n)
	if workers <= 1 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				f(i)
			}
		}()
	}
	wg.Wait()
}

// Map applies f to every item and returns the results in input order
// together with the first error in input order.
func Map[T, R any](items []T, f func(T) (R, error), cfg Config) ([]R, error) {
	out := make([]R, len(items))
	errs := make([]error, len(items))

	For(len(items), func(i int) {
		out[i], errs[i] = f(items[i])
	}, cfg)

	for _, err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
