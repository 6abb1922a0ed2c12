package caldav

import (
	"strconv"
	"strings"

	"televent/internal/models"
)

const (
	internalEmailPrefix = "tg_"
	internalEmailDomain = "@televent.internal"
)

// internalUserIDFromEmail recognises the internal-email form named in
// §6 (`tg_<numeric_user_id>@televent.internal`) and extracts the
// numeric user id it names. It is never sent over SMTP; it only ever
// appears as an ATTENDEE mailto value from a CalDAV client that knows
// another Televent user's internal address.
func internalUserIDFromEmail(email string) (int64, bool) {
	if !strings.HasSuffix(email, internalEmailDomain) {
		return 0, false
	}
	local := strings.TrimSuffix(email, internalEmailDomain)
	if !strings.HasPrefix(local, internalEmailPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(local, internalEmailPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// resolveAttendees implements §4.4 step 4: pairs each ATTENDEE mailto
// value using the internal-email form with its target user id, drops
// self-references (the organizer inviting themselves), and dedupes by
// email with first-occurrence-wins.
func resolveAttendees(attendees []models.EventAttendee, ownerUserID int64) []models.EventAttendee {
	seen := make(map[string]bool, len(attendees))
	out := make([]models.EventAttendee, 0, len(attendees))
	for _, a := range attendees {
		if id, ok := internalUserIDFromEmail(a.Email); ok {
			if id == ownerUserID {
				continue
			}
			resolved := id
			a.InternalUserID = &resolved
		}
		if seen[a.Email] {
			continue
		}
		seen[a.Email] = true
		out = append(out, a)
	}
	return out
}
