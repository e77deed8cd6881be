package scans

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/fleetscan/internal/application"
	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

// Coordinator fans a scan request out to one executor+sink pipeline per
// image, bounded by a concurrency limit, and collects every outcome.
// It never fails a batch early: all dispatched scans reach a terminal
// state before Run returns.
type Coordinator struct {
	Exec domain.Executor
	Sink *Sink

	// Limit bounds simultaneous executor invocations; the scanning tool
	// historically allows 1 concurrent scan per host.
	Limit       int
	ScanTimeout time.Duration

	// retry bounds for transient failures
	Attempts  uint
	BaseDelay time.Duration
	MaxDelay  time.Duration

	Clock application.Clock
	Log   zerolog.Logger
}

const (
	defaultAttempts  = 3
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 60 * time.Second
)

// Run dispatches one scan per distinct image and returns outcomes in
// dispatch order regardless of completion order.
func (c *Coordinator) Run(ctx context.Context, req domain.ScanRequest) domain.BatchResult {
	images := req.DedupedImages()
	batchID := uuid.New().String()

	limit := c.Limit
	if limit <= 0 {
		limit = 1
	}

	// indexed slice keeps dispatch order; each goroutine owns one slot
	outcomes := make([]domain.ScanOutcome, len(images))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, img := range images {
		wg.Add(1)
		go func(idx int, img domain.ImageRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			out := c.scanOne(ctx, img)
			out.Metadata = req.Metadata
			// work already done is never discarded: persist even when the
			// batch deadline has expired
			out = c.Sink.Persist(context.WithoutCancel(ctx), batchID, out)
			outcomes[idx] = out
		}(i, img)
	}
	wg.Wait()

	res := domain.BatchResult{ID: batchID, Request: req, Outcomes: outcomes}
	if !req.IgnoreFailed {
		for _, o := range outcomes {
			if o.Status != domain.StatusOK {
				res.Failed = true
				break
			}
		}
	}
	c.Log.Info().Str("batch_id", batchID).Int("images", len(images)).
		Bool("failed", res.Failed).Msg("batch finished")
	return res
}

// scanOne runs the executor with bounded retries for transient failures.
// Non-transient failures and timeouts are recorded as-is.
func (c *Coordinator) scanOne(ctx context.Context, img domain.ImageRef) domain.ScanOutcome {
	if ctx.Err() != nil {
		return c.timeoutOutcome(img)
	}

	attempts := c.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	baseDelay := c.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	maxDelay := c.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	var out domain.ScanOutcome
	tries := 0
	err := retry.Do(
		func() error {
			tries++
			out = c.Exec.Execute(ctx, img, c.ScanTimeout)
			if out.Retryable() {
				return fmt.Errorf("transient scan failure for %s: %s", img, out.ErrorDetail)
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(baseDelay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.Log.Warn().Str("image", string(img)).Uint("attempt", n+1).Err(err).
				Msg("retrying transient scan failure")
		}),
	)
	if err != nil && tries == 0 {
		// context expired before the first attempt ran
		return c.timeoutOutcome(img)
	}
	out.Attempts = tries
	return out
}

func (c *Coordinator) timeoutOutcome(img domain.ImageRef) domain.ScanOutcome {
	now := time.Now()
	if c.Clock != nil {
		now = c.Clock.Now()
	}
	return domain.ScanOutcome{
		Image:       img,
		Status:      domain.StatusTimeout,
		StartedAt:   now,
		FinishedAt:  now,
		ErrorDetail: "batch deadline exceeded before scan started",
	}
}
