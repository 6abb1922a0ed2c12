package caldavxml

import (
	"bytes"
	"encoding/xml"
	"time"

	"televent/internal/errs"
	"televent/internal/ical"
)

// MaxMultigetHrefs is the hard cap on calendar-multiget href counts (§4.3,
// §5, S6).
const MaxMultigetHrefs = 200

type ReportKind int

const (
	ReportCalendarQuery ReportKind = iota
	ReportSyncCollection
	ReportCalendarMultiget
)

// ReportRequest is the tagged-variant result of parsing a REPORT body
// (§4.3). Only the fields relevant to Kind are populated.
type ReportRequest struct {
	Kind ReportKind

	// ReportCalendarQuery
	Start *time.Time
	End   *time.Time

	// ReportSyncCollection
	SyncToken *string

	// ReportCalendarMultiget
	Hrefs []string
}

// ParseReport recognises the three top-level REPORT element types by
// local name and rejects any body carrying a DOCTYPE or ENTITY
// declaration (XXE defence, §4.3).
func ParseReport(body []byte) (*ReportRequest, error) {
	if err := rejectDoctype(body); err != nil {
		return nil, err
	}

	var root struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(body, &root); err != nil {
		return nil, errs.BadRequestf("malformed REPORT XML: %v", err)
	}

	switch root.XMLName.Local {
	case "calendar-query":
		return parseCalendarQuery(body)
	case "sync-collection":
		return parseSyncCollection(body)
	case "calendar-multiget":
		return parseCalendarMultiget(body)
	default:
		return nil, errs.BadRequestf("unsupported REPORT element %q", root.XMLName.Local)
	}
}

func rejectDoctype(body []byte) error {
	if bytes.Contains(body, []byte("<!DOCTYPE")) || bytes.Contains(body, []byte("<!ENTITY")) {
		return errs.BadRequestf("REPORT body must not declare a DOCTYPE or ENTITY")
	}
	return nil
}

func parseCalendarQuery(body []byte) (*ReportRequest, error) {
	var q calendarQueryXML
	if err := xml.Unmarshal(body, &q); err != nil {
		return nil, errs.BadRequestf("malformed calendar-query: %v", err)
	}
	req := &ReportRequest{Kind: ReportCalendarQuery}
	tr := findTimeRange(&q.Filter.CompFilter)
	if tr != nil {
		if tr.Start != "" {
			t, _, err := ical.ParseDateTime(tr.Start)
			if err != nil {
				return nil, errs.BadRequestf("bad time-range start: %v", err)
			}
			req.Start = &t
		}
		if tr.End != "" {
			t, _, err := ical.ParseDateTime(tr.End)
			if err != nil {
				return nil, errs.BadRequestf("bad time-range end: %v", err)
			}
			req.End = &t
		}
	}
	return req, nil
}

func findTimeRange(cf *compFilter) *timeRange {
	if cf == nil {
		return nil
	}
	if cf.TimeRange != nil {
		return cf.TimeRange
	}
	return findTimeRange(cf.CompFilter)
}

func parseSyncCollection(body []byte) (*ReportRequest, error) {
	var sc syncCollectionXML
	if err := xml.Unmarshal(body, &sc); err != nil {
		return nil, errs.BadRequestf("malformed sync-collection: %v", err)
	}
	req := &ReportRequest{Kind: ReportSyncCollection}
	if sc.SyncToken != "" {
		req.SyncToken = &sc.SyncToken
	}
	return req, nil
}

func parseCalendarMultiget(body []byte) (*ReportRequest, error) {
	var mg calendarMultigetXML
	if err := xml.Unmarshal(body, &mg); err != nil {
		return nil, errs.BadRequestf("malformed calendar-multiget: %v", err)
	}
	if len(mg.Hrefs) > MaxMultigetHrefs {
		return nil, errs.BadRequestf("calendar-multiget carries %d hrefs, exceeding the cap of %d", len(mg.Hrefs), MaxMultigetHrefs)
	}
	return &ReportRequest{Kind: ReportCalendarMultiget, Hrefs: mg.Hrefs}, nil
}

// ParseSyncToken extracts the trailing integer of the sync-token wire
// form `http://televent.app/sync/<integer>` (§6, §4.4). An empty or
// unparseable token is treated as "initial sync" (zero).
func ParseSyncToken(token string) int64 {
	if token == "" {
		return 0
	}
	i := len(token)
	for i > 0 && token[i-1] >= '0' && token[i-1] <= '9' {
		i--
	}
	digits := token[i:]
	if digits == "" {
		return 0
	}
	var n int64
	for _, c := range digits {
		n = n*10 + int64(c-'0')
	}
	return n
}
