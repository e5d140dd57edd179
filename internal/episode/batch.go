package episode

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BatchOutcome pairs a job with its result.
type BatchOutcome struct {
	Job    Job
	Result Result
	Err    error
}

// RunBatch runs jobs concurrently, at most concurrency at a time. Episodes are
// independent: one failing does not cancel the others. Outcomes are returned
// in job order, and the error joins every per-episode failure.
func (r *Runner) RunBatch(ctx context.Context, jobs []Job, concurrency int) ([]BatchOutcome, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	outcomes := make([]BatchOutcome, len(jobs))
	var group errgroup.Group
	group.SetLimit(concurrency)
	for i, job := range jobs {
		outcomes[i].Job = job
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			result, err := r.Run(ctx, job)
			outcomes[i].Result = result
			outcomes[i].Err = err
			return nil
		})
	}
	_ = group.Wait()

	var errs []error
	for i, outcome := range outcomes {
		if outcome.Err != nil {
			errs = append(errs, fmt.Errorf("job %d (%s): %w", i+1, outcome.Job.Name, outcome.Err))
		}
	}
	return outcomes, errors.Join(errs...)
}
