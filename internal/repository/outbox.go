package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"televent/internal/models"
)

type OutboxRepository struct {
	db *pgxpool.Pool
}

func NewOutboxRepository(db *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Insert queues a notification within tx, alongside whatever event
// mutation produced it — this is the transactional half of the outbox
// pattern: the message can never be observed without its triggering
// state change, and vice versa.
func InsertOutboxMessage(ctx context.Context, tx pgx.Tx, kind string, payload []byte) error {
	const query = `
		INSERT INTO outbox_messages (id, kind, payload)
		VALUES ($1, $2, $3)`
	_, err := tx.Exec(ctx, query, uuid.New(), kind, payload)
	return err
}

// ClaimBatch competitively fetches up to limit ready messages,
// marking them processing so a concurrent runner instance skips them
// rather than blocking behind the row lock.
func (r *OutboxRepository) ClaimBatch(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	const query = `
		UPDATE outbox_messages
		SET status = 'processing'
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE status = 'pending' AND scheduled_at <= now()
			ORDER BY scheduled_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, status, retry_count, scheduled_at, processed_at, error_message, created_at`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.OutboxMessage
	for rows.Next() {
		m := &models.OutboxMessage{}
		var status string
		if err := rows.Scan(&m.ID, &m.Kind, &m.Payload, &status, &m.RetryCount,
			&m.ScheduledAt, &m.ProcessedAt, &m.ErrorMessage, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Status = models.OutboxStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

// FinalizeBatch applies the outcome of a processed batch in three bulk
// statements (one `= ANY` match, two UNNEST joins) rather than one
// round trip per message: succeeded rows are marked done, retryable failures are
// rescheduled with their backoff and bumped retry_count, and
// exhausted failures are marked dead.
func (r *OutboxRepository) FinalizeBatch(ctx context.Context, succeeded, rescheduled, dead []uuid.UUID, rescheduledAt []time.Time, rescheduledErr []string, deadErr []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if len(succeeded) > 0 {
		const q = `
			UPDATE outbox_messages SET status = 'done', processed_at = now()
			WHERE id = ANY($1::uuid[])`
		if _, err := tx.Exec(ctx, q, succeeded); err != nil {
			return err
		}
	}

	if len(rescheduled) > 0 {
		const q = `
			UPDATE outbox_messages AS o
			SET status = 'pending', retry_count = o.retry_count + 1,
			    scheduled_at = u.scheduled_at, error_message = u.error_message
			FROM UNNEST($1::uuid[], $2::timestamptz[], $3::text[]) AS u(id, scheduled_at, error_message)
			WHERE o.id = u.id`
		if _, err := tx.Exec(ctx, q, rescheduled, rescheduledAt, rescheduledErr); err != nil {
			return err
		}
	}

	if len(dead) > 0 {
		const q = `
			UPDATE outbox_messages AS o
			SET status = 'dead', processed_at = now(), error_message = u.error_message
			FROM UNNEST($1::uuid[], $2::text[]) AS u(id, error_message)
			WHERE o.id = u.id`
		if _, err := tx.Exec(ctx, q, dead, deadErr); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
