package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"televent/internal/models"
	"televent/internal/notify"
)

// process dispatches a single message by kind, grounded on
// original_source/crates/worker/src/processors.rs's kind-match
// structure (telegram_notification / email). eventCache is the
// runner's §4.6 pre-fetch join result: events referenced by
// invite_notification rows in the current batch, keyed by id, fetched
// in one query before any processor runs.
func process(ctx context.Context, logger *zap.Logger, gateway notify.ChatGateway, mailer *notify.Mailer, msg *models.OutboxMessage, eventCache map[uuid.UUID]*models.Event) error {
	switch msg.Kind {
	case models.KindInviteNotification:
		var p models.InviteNotificationPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode invite_notification payload: %w", err)
		}
		e, ok := eventCache[p.EventID]
		if !ok {
			return fmt.Errorf("invite_notification: event %s missing from pre-fetch cache", p.EventID)
		}
		text := fmt.Sprintf("You've been invited to %q, starting %s", e.Summary, eventStartText(e))
		return gateway.SendChatMessage(ctx, p.TargetUserID, text)

	case models.KindRSVPNotification:
		var p models.RSVPNotificationPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode rsvp_notification payload: %w", err)
		}
		text := fmt.Sprintf("%s responded %s to %q", p.AttendeeName, p.Status, p.Summary)
		return gateway.SendChatMessage(ctx, p.OrganizerUserID, text)

	case models.KindCalendarInvite:
		var p models.CalendarInvitePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode calendar_invite payload: %w", err)
		}
		if p.RecipientUserID != nil {
			text := fmt.Sprintf("You've been invited to %q, starting %s", p.Summary, p.Start)
			return gateway.SendChatMessage(ctx, *p.RecipientUserID, text)
		}
		// §9: no external email transport in the MVP — a calendar_invite
		// with no recipient_user_id is logged only, never actually sent.
		logger.Info("calendar_invite for external recipient logged only",
			zap.String("recipient_email", p.RecipientEmail), zap.String("summary", p.Summary))
		return nil

	case models.KindEmail:
		var p models.EmailPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}
		return mailer.SendEmail(p)

	default:
		return fmt.Errorf("unknown outbox message kind %q", msg.Kind)
	}
}

func eventStartText(e *models.Event) string {
	if e.Timing.IsAllDay {
		return e.Timing.StartDate.Format("2006-01-02")
	}
	return e.Timing.Start.Format(`2006-01-02 15:04 MST`)
}

// inviteEventIDs collects the distinct event ids referenced by
// invite_notification messages in a batch, for the runner's pre-fetch
// join. Malformed payloads are skipped here; process() will surface
// the same decode error per-message when it runs.
func inviteEventIDs(msgs []*models.OutboxMessage) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, msg := range msgs {
		if msg.Kind != models.KindInviteNotification {
			continue
		}
		var p models.InviteNotificationPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			continue
		}
		if !seen[p.EventID] {
			seen[p.EventID] = true
			ids = append(ids, p.EventID)
		}
	}
	return ids
}
