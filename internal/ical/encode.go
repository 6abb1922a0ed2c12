package ical

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"televent/internal/models"
)

// EncodeEvent renders a VCALENDAR containing exactly one VEVENT (and its
// attendees), following the fixed field order mandated by §4.2.
func EncodeEvent(e *models.Event) []byte {
	var buf bytes.Buffer
	buf.Grow(512 + 64*len(e.Attendees))
	w := NewFoldedWriter(&buf)

	w.WriteLine("BEGIN:VCALENDAR")
	w.WriteLine("VERSION:2.0")
	w.WriteLine("PRODID:-//Televent//Calendar//EN")
	w.WriteLine("BEGIN:VEVENT")

	w.WriteLine("UID:" + EscapeText(e.UID))
	w.WriteLine("DTSTAMP:" + FormatUTC(time.Now()))
	w.WriteLine("SUMMARY:" + EscapeText(e.Summary))
	if e.Description != "" {
		w.WriteLine("DESCRIPTION:" + EscapeText(e.Description))
	}
	if e.Location != "" {
		w.WriteLine("LOCATION:" + EscapeText(e.Location))
	}
	if e.Timing.IsAllDay {
		w.WriteLine("DTSTART;VALUE=DATE:" + FormatDate(e.Timing.StartDate))
	} else {
		w.WriteLine("DTSTART:" + FormatUTC(e.Timing.Start))
		w.WriteLine("DTEND:" + FormatUTC(e.Timing.End))
	}
	w.WriteLine("STATUS:" + string(e.Status))
	for _, a := range e.Attendees {
		w.WriteLine(fmt.Sprintf("ATTENDEE;CN=User;RSVP=TRUE;PARTSTAT=%s:mailto:%s", a.Status, a.Email))
	}
	if e.RRule != "" {
		// RRULE is structured and is never escaped (§4.2).
		w.WriteLine("RRULE:" + e.RRule)
	}
	w.WriteLine("SEQUENCE:" + strconv.FormatInt(e.Version, 10))
	w.WriteLine("CREATED:" + FormatUTC(e.CreatedAt))
	w.WriteLine("LAST-MODIFIED:" + FormatUTC(e.UpdatedAt))

	w.WriteLine("END:VEVENT")
	w.WriteLine("END:VCALENDAR")

	return buf.Bytes()
}
