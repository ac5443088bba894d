package scheduler

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dirsweep/internal/limiter"
	"dirsweep/internal/logging"
	"dirsweep/internal/model"
)

const (
	// DefaultWorkerCap bounds the worker count derived from the CPU count.
	DefaultWorkerCap = 32
	// MaxWorkers bounds any explicitly requested worker count.
	MaxWorkers = 256
)

// Processor runs the whole pipeline for one candidate.
type Processor interface {
	Process(c model.Candidate) model.PathResult
}

// Options tunes a run.
type Options struct {
	Workers       int
	MaxCPUPercent float64
	// OnActive is called with the number of busy workers whenever it changes.
	OnActive func(active int)
}

// DefaultWorkers derives a worker count from available parallelism.
func DefaultWorkers() int {
	return ClampWorkers(min(DefaultWorkerCap, runtime.NumCPU()*4))
}

// ClampWorkers forces n into [1, MaxWorkers]; n <= 0 selects the default.
func ClampWorkers(n int) int {
	if n <= 0 {
		return DefaultWorkers()
	}
	return min(n, MaxWorkers)
}

// RunOnce processes every candidate on a bounded pool of workers and hands
// each terminal result to publish as soon as it exists. Results arrive in
// completion order, not input order.
//
// Cancelling ctx stops workers from taking new candidates; paths already in
// progress run to completion. Candidates never taken are reported in
// Summary.Unprocessed.
func RunOnce(ctx context.Context, candidates []model.Candidate, proc Processor, publish func(model.PathResult), opts Options, logger *logging.Logger) model.Summary {
	if logger == nil {
		logger = logging.Discard()
	}
	workers := ClampWorkers(opts.Workers)
	if workers > len(candidates) && len(candidates) > 0 {
		workers = len(candidates)
	}

	start := time.Now()
	var totals model.Totals
	var active atomic.Int64

	setActive := func(delta int64) {
		n := active.Add(delta)
		if opts.OnActive != nil {
			opts.OnActive(int(n))
		}
	}

	logger.Debug("starting worker pool", "workers", workers, "candidates", len(candidates))

	// Unbuffered: a candidate leaves the queue only when a worker is ready for it.
	queue := make(chan model.Candidate)

	var g errgroup.Group
	g.Go(func() error {
		defer close(queue)
		for _, c := range candidates {
			select {
			case <-ctx.Done():
				return nil
			case queue <- c:
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			cpu := limiter.NewCPULimiter(opts.MaxCPUPercent)
			for c := range queue {
				if ctx.Err() != nil {
					// drain without processing so the feeder can exit
					continue
				}

				setActive(1)
				began := time.Now()
				res := proc.Process(c)
				setActive(-1)

				totals.Add(res)
				publish(res)

				cpu.Throttle(ctx, time.Since(began))
			}
			return nil
		})
	}

	_ = g.Wait()

	summary := totals.Summary(time.Since(start))
	summary.Unprocessed = len(candidates) - summary.Total
	summary.Interrupted = ctx.Err() != nil && summary.Unprocessed > 0
	if summary.Interrupted {
		logger.Info("run interrupted", "processed", summary.Total, "unprocessed", summary.Unprocessed)
	}
	return summary
}
