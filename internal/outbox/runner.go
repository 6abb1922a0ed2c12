// Package outbox implements the transactional-outbox delivery worker:
// a poll loop that competitively claims pending messages, dispatches
// them concurrently up to a bounded width, and finalizes the batch in
// bulk. Grounded on the teacher's service/reminder_worker.go for the
// ticker/stop-channel shape, and on
// original_source/crates/worker/src/lib.rs for the poll/status-ticker
// separation and the exponential backoff formula.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"televent/internal/notify"
	"televent/internal/repository"
)

type Runner struct {
	repo    *repository.OutboxRepository
	events  *repository.EventRepository
	gateway notify.ChatGateway
	mailer  *notify.Mailer
	logger  *zap.Logger

	pollInterval      time.Duration
	statusLogInterval time.Duration
	batchSize         int
	maxRetryCount     int

	stopCh chan struct{}
}

func NewRunner(
	repo *repository.OutboxRepository,
	events *repository.EventRepository,
	gateway notify.ChatGateway,
	mailer *notify.Mailer,
	logger *zap.Logger,
	pollInterval, statusLogInterval time.Duration,
	batchSize, maxRetryCount int,
) *Runner {
	return &Runner{
		repo:              repo,
		events:            events,
		gateway:           gateway,
		mailer:            mailer,
		logger:            logger,
		pollInterval:      pollInterval,
		statusLogInterval: statusLogInterval,
		batchSize:         batchSize,
		maxRetryCount:     maxRetryCount,
		stopCh:            make(chan struct{}),
	}
}

// Run blocks processing batches until ctx is cancelled or Stop is
// called. The poll ticker and the status-log ticker run independently
// so a slow poll cadence doesn't starve status visibility, and vice
// versa.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("starting outbox runner",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("batch_size", r.batchSize))

	pollTicker := time.NewTicker(r.pollInterval)
	defer pollTicker.Stop()
	statusTicker := time.NewTicker(r.statusLogInterval)
	defer statusTicker.Stop()

	processed := 0

	r.pollOnce(ctx, &processed)

	for {
		select {
		case <-pollTicker.C:
			r.pollOnce(ctx, &processed)
		case <-statusTicker.C:
			r.logger.Info("outbox runner status", zap.Int("processed_since_last_status", processed))
			processed = 0
		case <-r.stopCh:
			r.logger.Info("outbox runner stopped")
			return
		case <-ctx.Done():
			r.logger.Info("outbox runner context cancelled")
			return
		}
	}
}

func (r *Runner) Stop() {
	close(r.stopCh)
}

func (r *Runner) pollOnce(ctx context.Context, processed *int) {
	msgs, err := r.repo.ClaimBatch(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("claim batch failed", zap.Error(err))
		return
	}
	if len(msgs) == 0 {
		return
	}

	// §4.6 pre-fetch join: one WHERE id = ANY(...) query for every
	// event an invite_notification in this batch refers to, instead of
	// each processor fetching its own event and causing an N+1.
	eventCache, err := r.events.GetByIDs(ctx, inviteEventIDs(msgs))
	if err != nil {
		r.logger.Error("pre-fetch event join failed", zap.Error(err))
		return
	}

	var (
		mu            sync.Mutex
		succeeded     []uuid.UUID
		rescheduled   []uuid.UUID
		rescheduledAt []time.Time
		rescheduleErr []string
		dead          []uuid.UUID
		deadErr       []string
	)

	// ClaimBatch already bounds len(msgs) to r.batchSize, so spawning one
	// goroutine per message gives the "parallelism equal to the batch
	// size" §4.6 calls for without a separate semaphore.
	var wg sync.WaitGroup

	for _, msg := range msgs {
		msg := msg
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := process(ctx, r.logger, r.gateway, r.mailer, msg, eventCache)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded = append(succeeded, msg.ID)
			case retriesExhausted(msg.RetryCount, r.maxRetryCount):
				dead = append(dead, msg.ID)
				deadErr = append(deadErr, err.Error())
				r.logger.Error("outbox message exhausted retries",
					zap.String("id", msg.ID.String()), zap.String("kind", msg.Kind),
					zap.Int("retry_count", msg.RetryCount), zap.Error(err))
			default:
				rescheduled = append(rescheduled, msg.ID)
				rescheduledAt = append(rescheduledAt, time.Now().Add(backoff(msg.RetryCount)))
				rescheduleErr = append(rescheduleErr, err.Error())
				r.logger.Warn("outbox message failed, rescheduling",
					zap.String("id", msg.ID.String()), zap.String("kind", msg.Kind),
					zap.Int("retry_count", msg.RetryCount), zap.Error(err))
			}
		}()
	}
	wg.Wait()

	if err := r.repo.FinalizeBatch(ctx, succeeded, rescheduled, dead, rescheduledAt, rescheduleErr, deadErr); err != nil {
		r.logger.Error("finalize batch failed", zap.Error(err))
		return
	}

	*processed += len(msgs)
}

// retriesExhausted reports whether a message that has already failed
// retryCount times should be marked dead rather than rescheduled.
// Ground truth (original_source/crates/worker/src/lib.rs) reschedules
// while retry_count < max_retry_count, so with the default
// max_retry_count of 5 a message gets 5 reschedules (retry_count 0..4)
// before failing on the 6th attempt.
func retriesExhausted(retryCount, maxRetryCount int) bool {
	return retryCount >= maxRetryCount
}

// backoff computes 2^(retryCount+1) minutes, confirmed against
// original_source/crates/worker/src/lib.rs's own
// test_exponential_backoff unit test.
func backoff(retryCount int) time.Duration {
	minutes := int64(1) << uint(retryCount+1)
	return time.Duration(minutes) * time.Minute
}
