package simulation

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc/pool"
)

// chunkResult carries one worker's iterations back to Run.
type chunkResult struct {
	Index int
	Agg   *Aggregate
	Err   error
}

// runParallel splits [0, n) into one contiguous chunk per worker. Each
// worker owns its schedule and random source; chunk aggregates are merged
// in chunk order so the output matches a sequential run.
func (e *Engine) runParallel(ctx context.Context, n int) (*Aggregate, error) {
	workers := min(e.opts.Workers, n)
	size := (n + workers - 1) / workers

	p := pool.NewWithResults[chunkResult]().WithMaxGoroutines(workers)
	for c := 0; c*size < n; c++ {
		from, to := c*size, min((c+1)*size, n)
		p.Go(func() chunkResult {
			agg, err := e.runRange(ctx, from, to)
			return chunkResult{Index: c, Agg: agg, Err: err}
		})
	}
	chunks := p.Wait()

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	merged := newAggregate(e.net.TaskCount(), n)
	var firstErr error
	for _, ch := range chunks {
		merged.merge(ch.Agg)
		if ch.Err != nil && firstErr == nil {
			firstErr = ch.Err
		}
	}
	return merged, firstErr
}
