// Package eventstore is the "4.1 Event store" component: it wraps
// internal/repository in single-transaction operations so an event
// mutation, its attendee rows, its owner's sync-token bump, and its
// outbox notifications either all land or none do. Grounded on the
// teacher's service/calendar.go, but replacing its fire-and-forget
// `go s.notification.Send(...)` goroutine with outbox rows inserted
// inside the same transaction as the state change (§4.1, §5).
package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"televent/internal/errs"
	"televent/internal/ical"
	"televent/internal/models"
	"televent/internal/repository"
)

type Store struct {
	db        *pgxpool.Pool
	events    *repository.EventRepository
	attendees *repository.AttendeeRepository
	users     *repository.UserRepository
}

func New(db *pgxpool.Pool) *Store {
	return &Store{
		db:        db,
		events:    repository.NewEventRepository(db),
		attendees: repository.NewAttendeeRepository(db),
		users:     repository.NewUserRepository(db),
	}
}

func (s *Store) Get(ctx context.Context, ownerUserID int64, eventID uuid.UUID) (*models.Event, error) {
	e, err := s.events.GetByID(ctx, ownerUserID, eventID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errs.NotFoundf("event %s not found", eventID)
	}
	return s.withAttendees(ctx, e)
}

func (s *Store) GetByUID(ctx context.Context, ownerUserID int64, uid string) (*models.Event, error) {
	e, err := s.events.GetByUID(ctx, ownerUserID, uid)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errs.NotFoundf("event with uid %q not found", uid)
	}
	return s.withAttendees(ctx, e)
}

func (s *Store) ListInWindow(ctx context.Context, ownerUserID int64, start, end time.Time) ([]*models.Event, error) {
	evs, err := s.events.ListInWindow(ctx, ownerUserID, start, end)
	if err != nil {
		return nil, err
	}
	return s.withAttendeesAll(ctx, evs)
}

func (s *Store) ListAll(ctx context.Context, ownerUserID int64) ([]*models.Event, error) {
	evs, err := s.events.ListAll(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	return s.withAttendeesAll(ctx, evs)
}

func (s *Store) ListChangedSince(ctx context.Context, ownerUserID int64, token int64) ([]*models.Event, error) {
	evs, err := s.events.ListChangedSince(ctx, ownerUserID, token)
	if err != nil {
		return nil, err
	}
	return s.withAttendeesAll(ctx, evs)
}

func (s *Store) withAttendeesAll(ctx context.Context, evs []*models.Event) ([]*models.Event, error) {
	for _, e := range evs {
		if _, err := s.withAttendees(ctx, e); err != nil {
			return nil, err
		}
	}
	return evs, nil
}

func (s *Store) withAttendees(ctx context.Context, e *models.Event) (*models.Event, error) {
	attendees, err := s.attendees.ListByEvent(ctx, e.EventID)
	if err != nil {
		return nil, err
	}
	e.Attendees = attendees
	return e, nil
}

// Create inserts e, its attendees, queues invite notifications for
// every attendee carrying an internal_user_id, and bumps the owner's
// sync-token, all inside one transaction (§4.1, §5 operation order:
// insert event -> insert attendees -> insert outbox rows -> bump
// sync-token -> commit).
func (s *Store) Create(ctx context.Context, e *models.Event) error {
	e.ETag = ical.ComputeETag(e)
	if e.Version == 0 {
		e.Version = 1
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := repository.InsertEvent(ctx, tx, e); err != nil {
		return err
	}

	newAttendees, err := repository.ReplaceAttendees(ctx, tx, e.EventID, e.Attendees)
	if err != nil {
		return err
	}

	if err := s.queueInviteNotifications(ctx, tx, e, newAttendees); err != nil {
		return err
	}

	if _, err := repository.IncrementSyncToken(ctx, tx, e.OwnerUserID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Update overwrites e in place (optimistic concurrency is enforced by
// the caller comparing ETags before calling Update), re-replaces its
// attendee set, queues invite notifications only for attendees new to
// this revision, and bumps the owner's sync-token.
func (s *Store) Update(ctx context.Context, e *models.Event) error {
	current, err := s.events.GetByID(ctx, e.OwnerUserID, e.EventID)
	if err != nil {
		return err
	}
	if current == nil {
		return errs.NotFoundf("event %s not found", e.EventID)
	}

	e.Version = current.Version + 1
	e.ETag = ical.ComputeETag(e)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := repository.UpdateEvent(ctx, tx, e); err != nil {
		return err
	}

	newAttendees, err := repository.ReplaceAttendees(ctx, tx, e.EventID, e.Attendees)
	if err != nil {
		return err
	}

	if err := s.queueInviteNotifications(ctx, tx, e, newAttendees); err != nil {
		return err
	}

	if _, err := repository.IncrementSyncToken(ctx, tx, e.OwnerUserID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete soft-deletes the event and bumps the owner's sync-token
// first, so a concurrently-running sync-collection cannot observe the
// deletion's version without also being able to fetch the tombstone
// row (§5's inverted ordering for deletes).
func (s *Store) Delete(ctx context.Context, ownerUserID int64, eventID uuid.UUID) error {
	current, err := s.events.GetByID(ctx, ownerUserID, eventID)
	if err != nil {
		return err
	}
	if current == nil {
		return errs.NotFoundf("event %s not found", eventID)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	token, err := repository.IncrementSyncToken(ctx, tx, ownerUserID)
	if err != nil {
		return err
	}

	if err := repository.SoftDeleteEvent(ctx, tx, ownerUserID, eventID, token); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RespondRSVP records an attendee's PARTSTAT response and queues a
// notification to the organizer. The event's own version/etag is
// left untouched: an RSVP is not a change to the organizer's
// authoritative copy of the event body (§4.1).
func (s *Store) RespondRSVP(ctx context.Context, ownerUserID int64, eventID uuid.UUID, attendeeEmail string, status models.AttendeeStatus) error {
	e, err := s.events.GetByID(ctx, ownerUserID, eventID)
	if err != nil {
		return err
	}
	if e == nil {
		return errs.NotFoundf("event %s not found", eventID)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE event_attendees SET status = $3 WHERE event_id = $1 AND email = $2`,
		eventID, attendeeEmail, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFoundf("attendee %q not found on event %s", attendeeEmail, eventID)
	}

	payload, err := json.Marshal(models.RSVPNotificationPayload{
		OrganizerUserID: ownerUserID,
		AttendeeName:    attendeeEmail,
		Summary:         e.Summary,
		Status:          string(status),
	})
	if err != nil {
		return err
	}
	if err := repository.InsertOutboxMessage(ctx, tx, models.KindRSVPNotification, payload); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// queueInviteNotifications inserts one outbox row per attendee who is
// both new to this revision and resolvable to an internal chat-platform
// user. Attendees with no internal_user_id get no outbox row.
func (s *Store) queueInviteNotifications(ctx context.Context, tx pgx.Tx, e *models.Event, newAttendees map[string]bool) error {
	for _, a := range e.Attendees {
		if !newAttendees[a.Email] || a.InternalUserID == nil {
			continue
		}
		payload, err := json.Marshal(models.InviteNotificationPayload{
			EventID:      e.EventID,
			TargetUserID: *a.InternalUserID,
		})
		if err != nil {
			return err
		}
		if err := repository.InsertOutboxMessage(ctx, tx, models.KindInviteNotification, payload); err != nil {
			return err
		}
	}
	return nil
}
