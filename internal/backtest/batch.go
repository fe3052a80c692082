package backtest

import (
	"context"
	"log"
	"sync"

	"bandrebalance/internal/model"
)

// Job is one independent backtest (a symbol, a parameter set, or both).
type Job struct {
	Name   string
	Bars   []model.DailyBar
	Params Params
}

// JobResult pairs a job with its outcome.
type JobResult struct {
	Name   string
	Result *Result
	Err    error
}

// RunMany executes jobs on a bounded worker pool and returns results in job
// order. Jobs not yet started when ctx is cancelled report ctx.Err(); a job
// already running always completes.
func RunMany(ctx context.Context, jobs []Job, workers int) []JobResult {
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]JobResult, len(jobs))
	idxCh := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxCh {
				job := jobs[i]
				res, err := Run(job.Bars, job.Params)
				results[i] = JobResult{Name: job.Name, Result: res, Err: err}
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case idxCh <- i:
			dispatched++
		}
	}
	close(idxCh)
	wg.Wait()

	if dispatched < len(jobs) {
		log.Printf("[backtest] cancelled: %d of %d jobs not started", len(jobs)-dispatched, len(jobs))
		for i := dispatched; i < len(jobs); i++ {
			results[i] = JobResult{Name: jobs[i].Name, Err: ctx.Err()}
		}
	}
	return results
}
