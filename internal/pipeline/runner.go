package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner admits jobs to the worker under a concurrency cap. Jobs beyond
// the cap stay pending until a slot frees up.
type Runner struct {
	store  jobFinalizer
	worker *Worker
	limit  chan struct{}
	log    *slog.Logger

	jobMaxAge time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// jobFinalizer is the slice of the job store the runner needs directly.
type jobFinalizer interface {
	MarkFailed(id, errMsg string) error
	Cleanup(maxAge time.Duration) error
}

func NewRunner(store jobFinalizer, worker *Worker, maxConcurrent int, jobMaxAge time.Duration, log *slog.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		store:     store,
		worker:    worker,
		limit:     make(chan struct{}, maxConcurrent),
		log:       log,
		jobMaxAge: jobMaxAge,
	}
}

// Start launches the periodic cleanup of expired job records. Jobs
// scheduled afterwards run under the derived context, so they outlive the
// HTTP requests that submitted them but not the server itself.
func (r *Runner) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.ctx = runCtx
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := r.store.Cleanup(r.jobMaxAge); err != nil {
					r.log.Warn("job cleanup failed", "error", err)
				}
			}
		}
	}()
}

// RunAsync schedules a job. The goroutine blocks on the admission
// semaphore, so a full pool leaves the job pending rather than rejected.
func (r *Runner) RunAsync(req *Request, jobDir string) {
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case r.limit <- struct{}{}:
		case <-ctx.Done():
			_ = r.store.MarkFailed(req.JobID, "server shutting down")
			return
		}
		defer func() { <-r.limit }()

		if err := r.worker.Run(ctx, req, jobDir); err != nil {
			r.log.Error("job failed", "job_id", req.JobID, "error", err)
		}
	}()
}

// Stop cancels background work and waits for in-flight jobs to settle.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}
