package pipeline

import (
	"context"
	stderrors "errors"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs a request with its outcome.
type BatchResult struct {
	Request Request
	Output  *Output
	Err     error
}

// RunAll runs every request with at most workers concurrent modules.
// Results are returned in input order. A failure never cancels other modules.
func (c *Coordinator) RunAll(ctx context.Context, reqs []Request, workers int) []BatchResult {
	results := make([]BatchResult, len(reqs))
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, req := range reqs {
		g.Go(func() error {
			out, err := c.Run(ctx, req)
			results[i] = BatchResult{Request: req, Output: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// BatchError joins the errors of every failed result, or returns nil.
func BatchError(results []BatchResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return stderrors.Join(errs...)
}
