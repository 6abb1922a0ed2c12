package ical

import (
	"fmt"
	"time"
)

const (
	utcDateTimeLayout = "20060102T150405Z"
	floatDateTimeLayout = "20060102T150405"
	dateLayout          = "20060102"
)

// ParseDateTime parses the three datetime grammars recognised by the
// decoder (§4.2): YYYYMMDDTHHMMSSZ (UTC), YYYYMMDDTHHMMSS (floating,
// interpreted as UTC by the core), and YYYYMMDD (date-only, isDate=true).
func ParseDateTime(s string) (t time.Time, isDate bool, err error) {
	switch len(s) {
	case len(utcDateTimeLayout):
		t, err = time.Parse(utcDateTimeLayout, s)
		if err == nil {
			return t.UTC(), false, nil
		}
	case len(floatDateTimeLayout):
		t, err = time.Parse(floatDateTimeLayout, s)
		if err == nil {
			return t.UTC(), false, nil
		}
	case len(dateLayout):
		t, err = time.Parse(dateLayout, s)
		if err == nil {
			return t.UTC(), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("ical: unrecognised datetime %q", s)
}

// FormatUTC renders a UTC datetime property value.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(utcDateTimeLayout)
}

// FormatDate renders a date-only property value.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
