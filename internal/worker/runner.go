// Package worker finalises saved results in the background: it adds an
// optional AI narrative, marks the result ready and sends the results email.
// The api package only sees the Enqueuer interface.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
)

// ─── ENQUEUER INTERFACE ───────────────────────────────────────────────────────

// Enqueuer is what the save handler calls after a result row is written.
// The concrete implementation is *Runner; tests use any struct with an
// Enqueue method.
type Enqueuer interface {
	Enqueue(ctx context.Context, resultID uuid.UUID) error
}

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero fields take the
// values from DefaultRunnerConfig.
type RunnerConfig struct {
	// Workers is the number of concurrent job goroutines. Default: 3.
	Workers int

	// PollInterval is how often the poller checks ListPendingResults for rows
	// the channel missed, e.g. after a restart. Default: 30s.
	PollInterval time.Duration

	// JobTimeout is the per-job context deadline. Default: 2 minutes.
	JobTimeout time.Duration

	// MaxRetries is the number of attempts before the result is marked
	// failed. Default: 3.
	MaxRetries int

	// BackoffUnit scales the exponential wait between attempts (2u, 4u, ...).
	// Default: 1s.
	BackoffUnit time.Duration
}

// DefaultRunnerConfig returns the production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      3,
		PollInterval: 30 * time.Second,
		JobTimeout:   2 * time.Minute,
		MaxRetries:   3,
		BackoffUnit:  time.Second,
	}
}

// Runner manages a pool of worker goroutines fed by an in-process channel,
// plus a poller that re-queues pending results left over from a restart.
type Runner struct {
	job    *Job
	store  ResultStore
	q      db.Querier
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan uuid.UUID
	wg    sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(
	job *Job,
	st ResultStore,
	q db.Querier,
	cfg RunnerConfig,
	logger *slog.Logger,
) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultRunnerConfig().Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultRunnerConfig().PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultRunnerConfig().JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRunnerConfig().MaxRetries
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = DefaultRunnerConfig().BackoffUnit
	}

	return &Runner{
		job:    job,
		store:  st,
		q:      q,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan uuid.UUID, cfg.Workers*2),
	}
}

// ErrQueueFull is returned by Enqueue when the channel buffer is full. The
// result stays pending and the poller picks it up later.
var ErrQueueFull = errors.New("worker: queue is full, result will be picked up by poller")

// Enqueue pushes a result id onto the channel without blocking.
func (r *Runner) Enqueue(_ context.Context, resultID uuid.UUID) error {
	select {
	case r.queue <- resultID:
		r.logger.Info("worker: enqueued result", "result_id", resultID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker pool and the poller and blocks until ctx is
// cancelled:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.poll(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Info("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker: goroutine stopping")
			return
		case resultID := <-r.queue:
			r.runWithRetry(ctx, resultID, log)
		}
	}
}

// poll re-queues pending results every PollInterval, starting immediately.
func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	results, err := r.q.ListPendingResults(ctx)
	if err != nil {
		r.logger.Error("worker: poll failed", "error", err)
		return
	}
	for _, res := range results {
		select {
		case r.queue <- res.ID:
			r.logger.Debug("worker: poller enqueued result", "result_id", res.ID)
		default:
			// full; next cycle
		}
	}
}

// runWithRetry executes the job up to MaxRetries times, then marks the
// result failed so the poller stops returning it.
func (r *Runner) runWithRetry(ctx context.Context, resultID uuid.UUID, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, resultID)
		cancel()

		if lastErr == nil {
			log.Info("worker: job completed", "result_id", resultID, "attempt", attempt)
			return
		}

		log.Warn("worker: job attempt failed",
			"result_id", resultID,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			backoff := time.Duration(1<<attempt) * r.cfg.BackoffUnit
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Error("worker: job permanently failed", "result_id", resultID, "error", lastErr)
	failCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := r.store.MarkResultFailed(failCtx, resultID, lastErr.Error()); err != nil {
		log.Error("worker: failed to mark result as failed", "result_id", resultID, "error", err)
	}
}
