package orchestrator

import "sync"

// pool runs a bounded number of jobs concurrently, grounded on
// orbitals/gateway.go's multi-phase pipeline pattern (fan work out,
// collect results, proceed to the next phase only once all are in) —
// here "validate-then-shard-then-checksum" becomes "plan-then-gate-then-
// sequence" across resources.
type pool struct {
	size int
}

func newPool(size int) *pool {
	if size <= 0 {
		size = 8
	}
	return &pool{size: size}
}

// run executes fn once per index in [0, n), bounded to p.size concurrent
// goroutines, and returns one error slot per index (nil on success).
func (p *pool) run(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}
	sem := make(chan struct{}, p.size)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = fn(i)
		}(i)
	}
	wg.Wait()
	return errs
}
