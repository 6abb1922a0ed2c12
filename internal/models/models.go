// Package models holds the data model described in SPEC_FULL.md §3:
// User, Event, EventAttendee, OutboxMessage. It carries no persistence or
// protocol logic — those live in internal/repository, internal/ical, and
// internal/caldavxml.
package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus mirrors the VEVENT STATUS property (§4.2).
type EventStatus string

const (
	StatusConfirmed EventStatus = "CONFIRMED"
	StatusTentative EventStatus = "TENTATIVE"
	StatusCancelled EventStatus = "CANCELLED"
)

// ParseEventStatus is case-insensitive; unknown values default to
// Confirmed per §4.2's decoding rule.
func ParseEventStatus(s string) EventStatus {
	switch normalizeStatus(s) {
	case "TENTATIVE":
		return StatusTentative
	case "CANCELLED":
		return StatusCancelled
	default:
		return StatusConfirmed
	}
}

func normalizeStatus(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// AttendeeRole mirrors the ATTENDEE;ROLE= parameter.
type AttendeeRole string

const (
	RoleChair         AttendeeRole = "CHAIR"
	RoleAttendee      AttendeeRole = "ATTENDEE"
	RoleOptParticipant AttendeeRole = "OPT-PARTICIPANT"
	RoleNonParticipant AttendeeRole = "NON-PARTICIPANT"
)

// AttendeeStatus mirrors the ATTENDEE;PARTSTAT= parameter.
type AttendeeStatus string

const (
	PartStatNeedsAction AttendeeStatus = "NEEDS-ACTION"
	PartStatAccepted    AttendeeStatus = "ACCEPTED"
	PartStatDeclined    AttendeeStatus = "DECLINED"
	PartStatTentative   AttendeeStatus = "TENTATIVE"
)

// User is a calendar owner, identified externally by a numeric chat-
// platform id (§3).
type User struct {
	UserID    int64
	Handle    string
	Timezone  string
	SyncToken int64
	CTag      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncTokenURI formats the sync-token wire form (§6).
func (u *User) SyncTokenURI() string {
	return SyncTokenURI(u.SyncToken)
}

func SyncTokenURI(token int64) string {
	return "http://televent.app/sync/" + itoa(token)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Timing is the tagged union described in §3: either Timed (both UTC,
// End > Start) or AllDay (date-only, EndDate > StartDate).
type Timing struct {
	IsAllDay bool

	// Timed fields, valid when !IsAllDay.
	Start time.Time
	End   time.Time

	// AllDay fields, valid when IsAllDay. Stored at midnight UTC.
	StartDate time.Time
	EndDate   time.Time
}

// Event is the VEVENT-equivalent record (§3).
type Event struct {
	EventID     uuid.UUID
	OwnerUserID int64
	UID         string
	Summary     string
	Description string
	Location    string
	Timing      Timing
	Status      EventStatus
	Timezone    string
	RRule       string
	Version     int64
	ETag        string
	Attendees   []EventAttendee
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// DeletedAt is non-zero only for sync-collection tombstones
	// returned by ListChangedSince; it is distinct from Status, which
	// a live event's own client can legitimately set to StatusCancelled
	// without the event having been deleted.
	DeletedAt time.Time
}

// EventAttendee is a participation row (§3).
type EventAttendee struct {
	EventID        uuid.UUID
	Email          string
	InternalUserID *int64
	Role           AttendeeRole
	Status         AttendeeStatus
}

// OutboxStatus is the delivery state machine (§3, §4.6).
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxDone       OutboxStatus = "done"
	OutboxDead       OutboxStatus = "dead"
)

// Outbox message kinds (§4.7, supplemented in SPEC_FULL.md §2.3).
const (
	KindInviteNotification = "invite_notification"
	KindRSVPNotification   = "rsvp_notification"
	KindCalendarInvite     = "calendar_invite"
	KindEmail              = "email"
)

// OutboxMessage is a durable, at-least-once delivery record (§3).
type OutboxMessage struct {
	ID           uuid.UUID
	Kind         string
	Payload      []byte // opaque JSON
	Status       OutboxStatus
	RetryCount   int
	ScheduledAt  time.Time
	ProcessedAt  *time.Time
	ErrorMessage *string
	CreatedAt    time.Time
}

// InviteNotificationPayload is the payload shape for KindInviteNotification.
type InviteNotificationPayload struct {
	EventID      uuid.UUID `json:"event_id"`
	TargetUserID int64     `json:"target_user_id"`
}

// RSVPNotificationPayload is the payload shape for KindRSVPNotification.
type RSVPNotificationPayload struct {
	OrganizerUserID int64  `json:"organizer_user_id"`
	AttendeeName    string `json:"attendee_name"`
	Summary         string `json:"summary"`
	Status          string `json:"status"`
}

// CalendarInvitePayload is the payload shape for KindCalendarInvite.
type CalendarInvitePayload struct {
	RecipientEmail  string  `json:"recipient_email"`
	RecipientUserID *int64  `json:"recipient_user_id,omitempty"`
	Summary         string  `json:"summary"`
	Start           string  `json:"start"`
	Location        *string `json:"location,omitempty"`
}

// EmailPayload is the payload shape for KindEmail.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
