package analysis

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

// Batch runs many addresses through an Analyzer with bounded concurrency.
type Batch struct {
	analyzer *Analyzer
	parallel int
}

// NewBatch creates a batch runner. parallel caps the number of in-flight
// analyses; values below 1 mean sequential.
func NewBatch(analyzer *Analyzer, parallel int) *Batch {
	if parallel < 1 {
		parallel = 1
	}
	return &Batch{analyzer: analyzer, parallel: parallel}
}

// Run analyzes every address and returns one Result per input, in input
// order regardless of completion order. Per-address failures are captured
// in their Result and never abort the rest. Cancelling ctx stops new work;
// results already produced stay valid and the remainder carry the context
// error.
func (b *Batch) Run(ctx context.Context, addresses []string) []Result {
	results := make([]Result, len(addresses))

	var g errgroup.Group
	g.SetLimit(b.parallel)
	for i, addr := range addresses {
		i, addr := i, addr
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = failedResult(addr, err)
				return nil
			}
			results[i] = b.analyzer.Analyze(ctx, addr)
			if !results[i].Succeeded {
				log.Warn("Contract analysis failed", "address", addr, "err", results[i].ErrorMessage)
			}
			return nil
		})
	}
	// Workers never return errors; failures live in the result slice.
	_ = g.Wait()
	return results
}
