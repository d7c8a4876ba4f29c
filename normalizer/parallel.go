package normalizer

import (
	"context"
	"io"
	"sync"
)

// Result is one outcome of Parallel. Seq is the position of the value in the
// source, results are delivered in Seq order.
type Result struct {
	Seq    int64
	Record Record
	Err    error

	skipped bool
}

type sequencedValue struct {
	seq   int64
	value interface{}
	err   error
}

// Parallel normalizes source with a pool of workers and re-emits results in
// source order. Values that are not objects are dropped. A source error other
// than io.EOF is delivered as a last Result with Err set. The returned channel
// is closed once the source is exhausted or ctx is done.
func (n *Normalizer) Parallel(ctx context.Context, source Source, workers int) <-chan Result {
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan sequencedValue, workers)
	results := make(chan Result, workers)
	out := make(chan Result, workers)

	// Reader, the only goroutine touching source.
	go func() {
		defer close(jobs)
		var seq int64
		for {
			value, err := source.Next()
			if err == io.EOF {
				return
			}
			select {
			case jobs <- sequencedValue{seq: seq, value: value, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
			seq++
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := Result{Seq: job.seq, Err: job.err}
				if job.err == nil {
					record, ok, err := n.Dispatch(job.value)
					res.Record, res.Err, res.skipped = record, err, !ok
				}
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Reorder buffer, holds results until every earlier sequence number is out.
	go func() {
		defer close(out)
		pending := map[int64]Result{}
		var next int64
		for res := range results {
			pending[res.Seq] = res
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				if ready.skipped {
					continue
				}
				select {
				case out <- ready:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
