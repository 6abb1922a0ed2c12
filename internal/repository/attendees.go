package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"televent/internal/models"
)

type AttendeeRepository struct {
	db *pgxpool.Pool
}

func NewAttendeeRepository(db *pgxpool.Pool) *AttendeeRepository {
	return &AttendeeRepository{db: db}
}

func (r *AttendeeRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventAttendee, error) {
	const query = `
		SELECT event_id, email, internal_user_id, role, status
		FROM event_attendees WHERE event_id = $1
		ORDER BY email`

	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EventAttendee
	for rows.Next() {
		var a models.EventAttendee
		var role, status string
		if err := rows.Scan(&a.EventID, &a.Email, &a.InternalUserID, &role, &status); err != nil {
			return nil, err
		}
		a.Role = models.AttendeeRole(role)
		a.Status = models.AttendeeStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReplaceAttendees deletes every existing attendee row for eventID and
// re-inserts the supplied set within tx, so an update's attendee list
// always matches exactly what the client submitted. newEmails reports,
// per address, whether the attendee is newly added relative to the
// rows replaced — eventstore uses this to decide who gets an invite
// notification versus nothing.
func ReplaceAttendees(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, attendees []models.EventAttendee) (newEmails map[string]bool, err error) {
	existing := make(map[string]bool)
	rows, err := tx.Query(ctx, `SELECT email FROM event_attendees WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			rows.Close()
			return nil, err
		}
		existing[email] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM event_attendees WHERE event_id = $1`, eventID); err != nil {
		return nil, err
	}

	newEmails = make(map[string]bool, len(attendees))
	const insert = `
		INSERT INTO event_attendees (event_id, email, internal_user_id, role, status)
		VALUES ($1, $2, $3, $4, $5)`
	batch := &pgx.Batch{}
	for _, a := range attendees {
		role := a.Role
		if role == "" {
			role = models.RoleAttendee
		}
		status := a.Status
		if status == "" {
			status = models.PartStatNeedsAction
		}
		batch.Queue(insert, eventID, a.Email, a.InternalUserID, string(role), string(status))
		newEmails[a.Email] = !existing[a.Email]
	}

	br := tx.SendBatch(ctx, batch)
	for range attendees {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, err
		}
	}
	return newEmails, br.Close()
}
