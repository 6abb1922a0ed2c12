package ical

import (
	"fmt"
	"strings"
	"time"

	"televent/internal/models"
)

// DecodeEvent parses a VCALENDAR body and extracts its first VEVENT,
// applying the decoding rules of §4.2. It does not apply the length caps
// that belong to the CalDAV PUT handler (§4.4 step 1); callers layer
// those on top.
func DecodeEvent(data []byte) (*models.Event, error) {
	lines := UnfoldLines(data)

	ev := &models.Event{
		Summary: "Untitled Event",
		Status:  models.StatusConfirmed,
	}

	var haveUID bool
	var dtstartSet, dtendSet bool
	var dtstartIsDate bool
	inVEvent := false

	for _, raw := range lines {
		cl, ok := parseLine(raw)
		if !ok {
			continue
		}
		switch cl.Name {
		case "BEGIN":
			if strings.EqualFold(cl.Value, "VEVENT") {
				inVEvent = true
			}
			continue
		case "END":
			if strings.EqualFold(cl.Value, "VEVENT") {
				inVEvent = false
			}
			continue
		}
		if !inVEvent {
			continue
		}

		switch cl.Name {
		case "UID":
			ev.UID = UnescapeText(cl.Value)
			haveUID = true
		case "SUMMARY":
			ev.Summary = UnescapeText(cl.Value)
		case "DESCRIPTION":
			ev.Description = UnescapeText(cl.Value)
		case "LOCATION":
			ev.Location = UnescapeText(cl.Value)
		case "DTSTART":
			t, isDate, err := ParseDateTime(cl.Value)
			if err != nil {
				return nil, fmt.Errorf("ical: DTSTART: %w", err)
			}
			if cl.Params["VALUE"] == "DATE" || isDate {
				dtstartIsDate = true
				ev.Timing.IsAllDay = true
				ev.Timing.StartDate = t
			} else {
				ev.Timing.Start = t
			}
			if tz, ok := cl.Params["TZID"]; ok {
				ev.Timezone = tz
			}
			dtstartSet = true
		case "DTEND":
			t, isDate, err := ParseDateTime(cl.Value)
			if err != nil {
				return nil, fmt.Errorf("ical: DTEND: %w", err)
			}
			if cl.Params["VALUE"] == "DATE" || isDate {
				ev.Timing.EndDate = t
			} else {
				ev.Timing.End = t
			}
			dtendSet = true
		case "STATUS":
			ev.Status = models.ParseEventStatus(cl.Value)
		case "RRULE":
			if HasControlChars(cl.Value) {
				return nil, fmt.Errorf("ical: RRULE contains a control character")
			}
			ev.RRule = cl.Value
		case "ATTENDEE":
			att, err := decodeAttendee(cl)
			if err != nil {
				return nil, err
			}
			ev.Attendees = append(ev.Attendees, att)
		}
	}

	if !haveUID {
		return nil, fmt.Errorf("ical: missing required UID property")
	}
	if !dtstartSet {
		return nil, fmt.Errorf("ical: missing required DTSTART property")
	}
	if !dtendSet {
		if dtstartIsDate {
			// All-day events carry no DTEND on encode (§9); a decoded
			// all-day event without DTEND is left with a zero EndDate,
			// resolved by the caller against the stored value on update.
		} else {
			ev.Timing.End = ev.Timing.Start.Add(1 * time.Hour)
		}
	}

	return ev, nil
}

func decodeAttendee(cl contentLine) (models.EventAttendee, error) {
	value := cl.Value
	const mailtoPrefix = "mailto:"
	if len(value) >= len(mailtoPrefix) && strings.EqualFold(value[:len(mailtoPrefix)], mailtoPrefix) {
		value = value[len(mailtoPrefix):]
	}
	email := strings.ToLower(strings.TrimSpace(value))

	role := models.AttendeeRole(cl.Params["ROLE"])
	if role == "" {
		role = models.RoleAttendee
	}

	status := models.PartStatNeedsAction
	if p, ok := cl.Params["PARTSTAT"]; ok {
		status = models.AttendeeStatus(strings.ToUpper(p))
	}

	return models.EventAttendee{
		Email:  email,
		Role:   role,
		Status: status,
	}, nil
}
