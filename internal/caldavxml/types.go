// Package caldavxml implements the CalDAV XML wire format described in
// SPEC_FULL.md §4.3 with typed encoding/xml structs — grounded on
// sonroyaalmerol-ldap-dav/internal/dav/common, which takes the same
// typed-struct approach rather than the teacher's hand-rolled
// fmt.Sprintf string concatenation (which cannot guarantee
// well-formedness or defend against XXE).
package caldavxml

import "encoding/xml"

const (
	NSDAV    = "DAV:"
	NSCalDAV = "urn:ietf:params:xml:ns:caldav"
	NSCS     = "http://calendarserver.org/ns/"
)

// MultiStatus is the root of every 207 response (RFC 4918 §13, RFC 4791).
type MultiStatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	XmlnsD    string     `xml:"xmlns:d,attr,omitempty"`
	XmlnsCal  string     `xml:"xmlns:cal,attr,omitempty"`
	XmlnsCS   string     `xml:"xmlns:cs,attr,omitempty"`
	Responses []Response `xml:"response"`
	SyncToken string     `xml:"DAV: sync-token,omitempty"`
}

func NewMultiStatus() *MultiStatus {
	return &MultiStatus{
		XmlnsD:   NSDAV,
		XmlnsCal: NSCalDAV,
		XmlnsCS:  NSCS,
	}
}

type Response struct {
	Href      string     `xml:"href"`
	PropStats []PropStat `xml:"propstat,omitempty"`
	Status    string     `xml:"status,omitempty"`
}

type PropStat struct {
	Prop   Prop   `xml:"prop"`
	Status string `xml:"status"`
}

// Prop is a superset of the properties Televent ever emits; unused
// fields are omitted via `omitempty` / zero-value chardata.
type Prop struct {
	ResourceType                  *ResourceType       `xml:"DAV: resourcetype,omitempty"`
	DisplayName                   *string             `xml:"DAV: displayname,omitempty"`
	CurrentUserPrincipal          *Href               `xml:"DAV: current-user-principal>href,omitempty"`
	Owner                         *Href               `xml:"DAV: owner>href,omitempty"`
	CalendarHomeSet               *Href               `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set>href,omitempty"`
	SupportedCalendarComponentSet *SupportedCompSet   `xml:"urn:ietf:params:xml:ns:caldav supported-calendar-component-set,omitempty"`
	SupportedReportSet            *SupportedReportSet `xml:"DAV: supported-report-set,omitempty"`
	GetCTag                       *string             `xml:"http://calendarserver.org/ns/ getctag,omitempty"`
	SyncToken                     *string             `xml:"DAV: sync-token,omitempty"`
	GetETag                       string              `xml:"DAV: getetag,omitempty"`
	GetContentType                string              `xml:"DAV: getcontenttype,omitempty"`
	GetLastModified                string              `xml:"DAV: getlastmodified,omitempty"`
	CalendarData                  string              `xml:"urn:ietf:params:xml:ns:caldav calendar-data,omitempty"`
}

type ResourceType struct {
	Collection *struct{} `xml:"DAV: collection,omitempty"`
	Calendar   *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar,omitempty"`
}

type Href struct {
	Value string `xml:",chardata"`
}

type SupportedCompSet struct {
	Comp []Comp `xml:"urn:ietf:params:xml:ns:caldav comp"`
}

type Comp struct {
	Name string `xml:"name,attr"`
}

type SupportedReportSet struct {
	SupportedReport []SupportedReport `xml:"DAV: supported-report"`
}

type SupportedReport struct {
	Report ReportTypeAd `xml:"DAV: report"`
}

type ReportTypeAd struct {
	CalendarQuery    *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar-query,omitempty"`
	CalendarMultiget *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar-multiget,omitempty"`
	SyncCollection   *struct{} `xml:"DAV: sync-collection,omitempty"`
}

// ---------- REPORT request bodies (unmarshalled from the client) ----------

type calendarQueryXML struct {
	XMLName xml.Name       `xml:"urn:ietf:params:xml:ns:caldav calendar-query"`
	Filter  calendarFilter `xml:"urn:ietf:params:xml:ns:caldav filter"`
}

type calendarFilter struct {
	CompFilter compFilter `xml:"urn:ietf:params:xml:ns:caldav comp-filter"`
}

type compFilter struct {
	Name       string      `xml:"name,attr"`
	CompFilter *compFilter `xml:"urn:ietf:params:xml:ns:caldav comp-filter,omitempty"`
	TimeRange  *timeRange  `xml:"urn:ietf:params:xml:ns:caldav time-range,omitempty"`
}

type timeRange struct {
	Start string `xml:"start,attr,omitempty"`
	End   string `xml:"end,attr,omitempty"`
}

type syncCollectionXML struct {
	XMLName   xml.Name `xml:"DAV: sync-collection"`
	SyncToken string   `xml:"DAV: sync-token"`
}

type calendarMultigetXML struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav calendar-multiget"`
	Hrefs   []string `xml:"DAV: href"`
}
