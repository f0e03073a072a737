package tbd

import (
	"context"
	"runtime"

	"github.com/appsworld/go-tbd/pkg/container"
	"golang.org/x/sync/errgroup"
)

// A Job is one image to consolidate.
type Job struct {
	Name       string
	Containers []*container.Container
}

// A Result is the outcome of one Job.
type Result struct {
	Name   string
	Record *Record
	Err    error
}

// ConsolidateAll consolidates independent images with up to workers
// goroutines (GOMAXPROCS when workers < 1). Results are returned in job
// order and a failing image does not stop the others. onDone, if set, is
// called as each job finishes, possibly concurrently.
//
// The returned error is only non-nil when ctx is cancelled.
func ConsolidateAll(ctx context.Context, jobs []Job, opts *Options, workers int, onDone func(Result)) ([]Result, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := Consolidate(gctx, job.Containers, opts)
			results[i] = Result{Name: job.Name, Record: rec, Err: err}
			if onDone != nil {
				onDone(results[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
