package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"televent/internal/errs"
	"televent/internal/models"
)

type EventRepository struct {
	db *pgxpool.Pool
}

func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `event_id, owner_user_id, uid, summary, description, location,
	is_all_day, start_at, end_at, start_date, end_date, status, timezone, rrule,
	version, etag, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	e := &models.Event{}
	var status string
	var start, end, sDate, eDate sql.NullTime

	err := row.Scan(
		&e.EventID, &e.OwnerUserID, &e.UID, &e.Summary, &e.Description, &e.Location,
		&e.Timing.IsAllDay, &start, &end, &sDate, &eDate, &status, &e.Timezone, &e.RRule,
		&e.Version, &e.ETag, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = models.ParseEventStatus(status)
	e.Timing.Start = start.Time
	e.Timing.End = end.Time
	e.Timing.StartDate = sDate.Time
	e.Timing.EndDate = eDate.Time
	return e, nil
}

// GetByID loads a single event, returning (nil, nil) when absent.
func (r *EventRepository) GetByID(ctx context.Context, ownerUserID int64, eventID uuid.UUID) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE owner_user_id = $1 AND event_id = $2 AND deleted_at IS NULL`
	e, err := scanEvent(r.db.QueryRow(ctx, query, ownerUserID, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByUID loads a single event by its iCalendar UID within a user's
// collection; this is the lookup href->event resolution uses.
func (r *EventRepository) GetByUID(ctx context.Context, ownerUserID int64, uid string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE owner_user_id = $1 AND uid = $2 AND deleted_at IS NULL`
	e, err := scanEvent(r.db.QueryRow(ctx, query, ownerUserID, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByIDs loads every non-deleted event named in ids in one query,
// regardless of owner — used by the outbox runner's pre-fetch join
// (§4.6), which is a system-trusted component spanning many owners'
// events in a single batch.
func (r *EventRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Event, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*models.Event{}, nil
	}
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE event_id = ANY($1::uuid[]) AND deleted_at IS NULL`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	evs, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*models.Event, len(evs))
	for _, e := range evs {
		out[e.EventID] = e
	}
	return out, nil
}

// ListInWindow returns events whose start (start_at, or start_date at
// UTC midnight for all-day events) lies in [start, end), for
// calendar-query REPORT handling.
func (r *EventRepository) ListInWindow(ctx context.Context, ownerUserID int64, start, end time.Time) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE owner_user_id = $1 AND deleted_at IS NULL
		  AND COALESCE(start_at, start_date::timestamp AT TIME ZONE 'UTC') >= $2
		  AND COALESCE(start_at, start_date::timestamp AT TIME ZONE 'UTC') < $3
		ORDER BY start_at NULLS LAST, event_id`

	rows, err := r.db.Query(ctx, query, ownerUserID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListAll returns every non-deleted event in the collection, for
// calendar-query REPORTs with no time-range filter.
func (r *EventRepository) ListAll(ctx context.Context, ownerUserID int64) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE owner_user_id = $1 AND deleted_at IS NULL
		ORDER BY start_at NULLS LAST, event_id`

	rows, err := r.db.Query(ctx, query, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListChangedSince returns every event (including soft-deleted tombstones)
// whose version exceeds token, for sync-collection REPORT handling. The
// caller distinguishes deletions by checking DeletedAt.
func (r *EventRepository) ListChangedSince(ctx context.Context, ownerUserID int64, token int64) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + `, deleted_at FROM events
		WHERE owner_user_id = $1 AND version > $2
		ORDER BY version, event_id`

	rows, err := r.db.Query(ctx, query, ownerUserID, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		e := &models.Event{}
		var status string
		var start, end, sDate, eDate, deletedAt sql.NullTime
		if err := rows.Scan(
			&e.EventID, &e.OwnerUserID, &e.UID, &e.Summary, &e.Description, &e.Location,
			&e.Timing.IsAllDay, &start, &end, &sDate, &eDate, &status, &e.Timezone, &e.RRule,
			&e.Version, &e.ETag, &e.CreatedAt, &e.UpdatedAt, &deletedAt,
		); err != nil {
			return nil, err
		}
		e.Status = models.ParseEventStatus(status)
		e.Timing.Start = start.Time
		e.Timing.End = end.Time
		e.Timing.StartDate = sDate.Time
		e.Timing.EndDate = eDate.Time
		e.DeletedAt = deletedAt.Time
		out = append(out, e)
	}
	return out, rows.Err()
}

func collectEvents(rows pgx.Rows) ([]*models.Event, error) {
	var out []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Insert writes a new event row within tx. Caller owns the
// transaction boundary and the accompanying sync-token increment.
func InsertEvent(ctx context.Context, tx pgx.Tx, e *models.Event) error {
	const query = `
		INSERT INTO events (
			event_id, owner_user_id, uid, summary, description, location,
			is_all_day, start_at, end_at, start_date, end_date, status, timezone, rrule,
			version, etag
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at`

	err := tx.QueryRow(ctx, query,
		e.EventID, e.OwnerUserID, e.UID, e.Summary, e.Description, e.Location,
		e.Timing.IsAllDay, nullTime(e.Timing.Start), nullTime(e.Timing.End),
		nullTime(e.Timing.StartDate), nullTime(e.Timing.EndDate),
		string(e.Status), e.Timezone, e.RRule, e.Version, e.ETag,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errs.Conflictf("event with uid %q already exists", e.UID)
	}
	return err
}

// Update overwrites the mutable fields of an existing event row
// within tx, bumping version and refreshing etag/updated_at.
func UpdateEvent(ctx context.Context, tx pgx.Tx, e *models.Event) error {
	const query = `
		UPDATE events SET
			summary = $3, description = $4, location = $5,
			is_all_day = $6, start_at = $7, end_at = $8,
			start_date = $9, end_date = $10, status = $11,
			timezone = $12, rrule = $13, version = $14, etag = $15,
			updated_at = now()
		WHERE owner_user_id = $1 AND event_id = $2
		RETURNING updated_at`

	return tx.QueryRow(ctx, query,
		e.OwnerUserID, e.EventID,
		e.Summary, e.Description, e.Location,
		e.Timing.IsAllDay, nullTime(e.Timing.Start), nullTime(e.Timing.End),
		nullTime(e.Timing.StartDate), nullTime(e.Timing.EndDate), string(e.Status),
		e.Timezone, e.RRule, e.Version, e.ETag,
	).Scan(&e.UpdatedAt)
}

// SoftDelete marks an event row deleted within tx, bumping its
// version so sync-collection clients observe the tombstone.
func SoftDeleteEvent(ctx context.Context, tx pgx.Tx, ownerUserID int64, eventID uuid.UUID, version int64) error {
	const query = `
		UPDATE events SET deleted_at = now(), version = $3, updated_at = now()
		WHERE owner_user_id = $1 AND event_id = $2`
	tag, err := tx.Exec(ctx, query, ownerUserID, eventID, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
