// Package caldav implements the RFC 4791 surface named in
// SPEC_FULL.md §4.4: OPTIONS/PROPFIND/GET/PUT/DELETE/REPORT against a
// single calendar collection per user. Grounded on the teacher's
// caldav/handler.go for the method-dispatch shape and route
// registration style, but the fmt.Sprintf XML string-building is
// replaced throughout by internal/caldavxml's typed encoder/parser,
// and the multi-calendar-per-user routing collapses to one collection
// per owner per SPEC_FULL.md §1's non-goal.
package caldav

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"televent/internal/auth"
	"televent/internal/caldavxml"
	"televent/internal/errs"
	"televent/internal/eventstore"
	"televent/internal/ical"
	"televent/internal/models"
	"televent/internal/repository"
)

type Handler struct {
	store  *eventstore.Store
	users  *repository.UserRepository
	logger *zap.Logger
}

func NewHandler(store *eventstore.Store, users *repository.UserRepository, logger *zap.Logger) *Handler {
	return &Handler{store: store, users: users, logger: logger}
}

// RegisterRoutes mounts the catch-all CalDAV method dispatcher, the
// same style the teacher uses for its own WebDAV surface.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/{identifier}", h.handleCollection)
	r.HandleFunc("/{identifier}/", h.handleCollection)
	r.HandleFunc("/{identifier}/{uid}.ics", h.handleResource)
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		h.options(w)
	case "PROPFIND":
		h.propfindCollection(w, r)
	case "REPORT":
		h.report(w, r)
	case "MKCALENDAR":
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleResource(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		h.options(w)
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	case "PROPFIND":
		h.propfindResource(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) options(w http.ResponseWriter) {
	w.Header().Set("Allow", "OPTIONS, PROPFIND, REPORT, GET, PUT, DELETE")
	w.Header().Set("DAV", "1, calendar-access")
	w.Header().Set("Cal-Accessible", "calendar")
	w.WriteHeader(http.StatusOK)
}

// resolveOwner resolves the {identifier} path segment — a numeric user
// id or a handle — to a user and verifies it names the authenticated
// caller, per §4.4: every handler re-verifies resolved_user_id ==
// authenticated_user_id, else Forbidden.
func (h *Handler) resolveOwner(r *http.Request) (int64, error) {
	authUserID, err := auth.UserID(r.Context())
	if err != nil {
		return 0, err
	}

	identifier := chi.URLParam(r, "identifier")
	var resolved *models.User
	if numericID, convErr := strconv.ParseInt(identifier, 10, 64); convErr == nil {
		resolved, err = h.users.GetByID(r.Context(), numericID)
	} else {
		resolved, err = h.users.GetByHandle(r.Context(), identifier)
	}
	if err != nil {
		return 0, err
	}
	if resolved == nil {
		return 0, errs.NotFoundf("calendar %q not found", identifier)
	}
	if resolved.UserID != authUserID {
		return 0, errs.Forbiddenf("calendar %q does not belong to the authenticated user", identifier)
	}
	return authUserID, nil
}

// maxRequestBodyBytes bounds REPORT and PUT request bodies per §4.4/§5
// /§6/§7. readLimitedBody reads at most one byte past the cap so an
// oversized body is reported as BadRequest instead of being silently
// truncated by io.LimitReader.
const maxRequestBodyBytes = 1 << 20

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, errs.BadRequestf("read request body: %v", err)
	}
	if int64(len(body)) > limit {
		return nil, errs.BadRequestf("request body exceeds %d bytes", limit)
	}
	return body, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.BadRequest:
		status = http.StatusBadRequest
	case errs.Unauthorized:
		status = http.StatusUnauthorized
	case errs.Forbidden:
		status = http.StatusForbidden
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.Conflict:
		status = http.StatusConflict
	}
	h.logger.Warn("caldav request failed", zap.Error(err), zap.Int("status", status))
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	http.Error(w, msg, status)
}

func (h *Handler) propfindCollection(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.resolveOwner(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	identifier := chi.URLParam(r, "identifier")

	user, err := h.users.GetByID(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if user == nil {
		h.writeError(w, errs.NotFoundf("user %d not found", ownerID))
		return
	}

	// Get Depth header (default to 0), per §4.4: an absent Depth means
	// collection-level metadata only, not the full child listing.
	depth := r.Header.Get("Depth")
	if depth == "" {
		depth = "0"
	}

	ms := caldavxml.NewMultiStatus()
	collectionHref := caldavxml.CollectionHref(identifier)
	ms.Responses = append(ms.Responses, caldavxml.Response{
		Href: collectionHref,
		PropStats: []caldavxml.PropStat{{
			Status: "HTTP/1.1 200 OK",
			Prop: caldavxml.Prop{
				ResourceType:                  &caldavxml.ResourceType{Collection: &struct{}{}, Calendar: &struct{}{}},
				DisplayName:                   caldavxml.StrPtr(user.Handle),
				GetCTag:                       caldavxml.StrPtr(user.CTag),
				SyncToken:                     caldavxml.StrPtr(user.SyncTokenURI()),
				CalendarHomeSet:               &caldavxml.Href{Value: collectionHref},
				CurrentUserPrincipal:          &caldavxml.Href{Value: collectionHref},
				Owner:                         &caldavxml.Href{Value: collectionHref},
				SupportedCalendarComponentSet: &caldavxml.SupportedCompSet{Comp: []caldavxml.Comp{{Name: "VEVENT"}}},
				SupportedReportSet:            defaultSupportedReports(),
			},
		}},
	})

	if depth != "0" {
		events, err := h.store.ListAll(r.Context(), ownerID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		for _, e := range events {
			ms.Responses = append(ms.Responses, eventResponse(identifier, e))
		}
	}

	writeMultiStatus(w, ms, h.logger)
}

func (h *Handler) propfindResource(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.resolveOwner(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	identifier := chi.URLParam(r, "identifier")
	uid, ok := caldavxml.UIDFromHref(chi.URLParam(r, "uid") + ".ics")
	if !ok {
		h.writeError(w, errs.BadRequestf("invalid resource path"))
		return
	}

	e, err := h.store.GetByUID(r.Context(), ownerID, uid)
	if err != nil {
		h.writeError(w, err)
		return
	}

	ms := caldavxml.NewMultiStatus()
	ms.Responses = append(ms.Responses, eventResponse(identifier, e))
	writeMultiStatus(w, ms, h.logger)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.resolveOwner(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	identifier := chi.URLParam(r, "identifier")

	body, err := readLimitedBody(r, maxRequestBodyBytes)
	if err != nil {
		h.writeError(w, err)
		return
	}

	req, err := caldavxml.ParseReport(body)
	if err != nil {
		h.logger.Warn("REPORT body rejected", zap.ByteString("body_prefix", body[:min(len(body), 256)]))
		h.writeError(w, err)
		return
	}

	ms := caldavxml.NewMultiStatus()

	switch req.Kind {
	case caldavxml.ReportCalendarQuery:
		var events []*models.Event
		if req.Start != nil && req.End != nil {
			events, err = h.store.ListInWindow(r.Context(), ownerID, *req.Start, *req.End)
		} else {
			events, err = h.store.ListAll(r.Context(), ownerID)
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
		for _, e := range events {
			ms.Responses = append(ms.Responses, eventResponse(identifier, e))
		}

	case caldavxml.ReportSyncCollection:
		var token int64
		if req.SyncToken != nil {
			token = caldavxml.ParseSyncToken(*req.SyncToken)
		}
		events, err := h.store.ListChangedSince(r.Context(), ownerID, token)
		if err != nil {
			h.writeError(w, err)
			return
		}
		for _, e := range events {
			if !e.DeletedAt.IsZero() {
				ms.Responses = append(ms.Responses, caldavxml.Response{
					Href: caldavxml.EventHref(identifier, e.UID),
					PropStats: []caldavxml.PropStat{{Status: "HTTP/1.1 404 Not Found"}},
				})
				continue
			}
			ms.Responses = append(ms.Responses, eventResponse(identifier, e))
		}
		user, err := h.users.GetByID(r.Context(), ownerID)
		if err == nil && user != nil {
			ms.SyncToken = user.SyncTokenURI()
		}

	case caldavxml.ReportCalendarMultiget:
		for _, href := range req.Hrefs {
			uid, ok := caldavxml.UIDFromHref(href)
			if !ok {
				continue
			}
			e, err := h.store.GetByUID(r.Context(), ownerID, uid)
			if err != nil {
				ms.Responses = append(ms.Responses, caldavxml.Response{
					Href:      href,
					PropStats: []caldavxml.PropStat{{Status: "HTTP/1.1 404 Not Found"}},
				})
				continue
			}
			ms.Responses = append(ms.Responses, eventResponse(identifier, e))
		}
	}

	writeMultiStatus(w, ms, h.logger)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.resolveOwner(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	uid, ok := caldavxml.UIDFromHref(chi.URLParam(r, "uid") + ".ics")
	if !ok {
		h.writeError(w, errs.BadRequestf("invalid resource path"))
		return
	}

	e, err := h.store.GetByUID(r.Context(), ownerID, uid)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("ETag", strconv.Quote(e.ETag))
	w.Write(ical.EncodeEvent(e))
}

// put creates or updates an event. If-Match enforces optimistic
// concurrency per §4.4's PUT precondition rules; a missing If-Match
// on an existing resource is treated as an unconditional overwrite,
// matching the teacher's own PUT handling, and `If-Match: *` always
// passes.
func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.resolveOwner(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	uid, ok := caldavxml.UIDFromHref(chi.URLParam(r, "uid") + ".ics")
	if !ok {
		h.writeError(w, errs.BadRequestf("invalid resource path"))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodyBytes)
	if err != nil {
		h.writeError(w, err)
		return
	}

	e, err := ical.DecodeEvent(body)
	if err != nil {
		h.writeError(w, errs.BadRequestf("%v", err))
		return
	}
	if len(e.UID) > 256 || len(e.Summary) > 256 || len(e.Description) > 10000 ||
		len(e.Location) > 1024 || len(e.RRule) > 1024 {
		h.writeError(w, errs.BadRequestf("iCalendar property exceeds its length cap"))
		return
	}
	if e.UID != uid {
		h.writeError(w, errs.BadRequestf("UID %q does not match resource path %q", e.UID, uid))
		return
	}
	e.OwnerUserID = ownerID
	e.Attendees = resolveAttendees(e.Attendees, ownerID)

	existing, err := h.store.GetByUID(r.Context(), ownerID, uid)
	isUpdate := err == nil && existing != nil
	if err != nil && errs.KindOf(err) != errs.NotFound {
		h.writeError(w, err)
		return
	}

	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" && ifMatch != "*" {
		if !isUpdate {
			h.writeError(w, errs.Conflictf("If-Match on nonexistent resource"))
			return
		}
		if ifMatch != strconv.Quote(existing.ETag) {
			h.writeError(w, errs.Conflictf("ETag precondition failed"))
			return
		}
	}

	if isUpdate {
		e.EventID = existing.EventID
		e.Version = existing.Version
		if e.Timing.IsAllDay && e.Timing.EndDate.IsZero() {
			// §9: all-day events never carry DTEND on encode, so every
			// PUT of an existing all-day event arrives without one;
			// preserve the stored end date instead of clearing it.
			e.Timing.EndDate = existing.Timing.EndDate
		}
		err = h.store.Update(r.Context(), e)
	} else {
		e.EventID = uuid.New()
		err = h.store.Create(r.Context(), e)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("ETag", strconv.Quote(e.ETag))
	if isUpdate {
		w.WriteHeader(http.StatusNoContent)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.resolveOwner(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	uid, ok := caldavxml.UIDFromHref(chi.URLParam(r, "uid") + ".ics")
	if !ok {
		h.writeError(w, errs.BadRequestf("invalid resource path"))
		return
	}

	existing, err := h.store.GetByUID(r.Context(), ownerID, uid)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" && ifMatch != "*" && ifMatch != strconv.Quote(existing.ETag) {
		h.writeError(w, errs.Conflictf("ETag precondition failed"))
		return
	}

	if err := h.store.Delete(r.Context(), ownerID, existing.EventID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeMultiStatus(w http.ResponseWriter, ms *caldavxml.MultiStatus, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	if err := caldavxml.WriteMultiStatus(w, ms); err != nil {
		logger.Error("failed to write multistatus response", zap.Error(err))
	}
}

func eventResponse(identifier string, e *models.Event) caldavxml.Response {
	return caldavxml.Response{
		Href: caldavxml.EventHref(identifier, e.UID),
		PropStats: []caldavxml.PropStat{{
			Status: "HTTP/1.1 200 OK",
			Prop: caldavxml.Prop{
				GetETag:         strconv.Quote(e.ETag),
				GetContentType:  "text/calendar; charset=utf-8",
				CalendarData:    string(ical.EncodeEvent(e)),
				GetLastModified: e.UpdatedAt.UTC().Format(http.TimeFormat),
			},
		}},
	}
}

func defaultSupportedReports() *caldavxml.SupportedReportSet {
	return &caldavxml.SupportedReportSet{
		SupportedReport: []caldavxml.SupportedReport{
			{Report: caldavxml.ReportTypeAd{CalendarQuery: &struct{}{}}},
			{Report: caldavxml.ReportTypeAd{CalendarMultiget: &struct{}{}}},
			{Report: caldavxml.ReportTypeAd{SyncCollection: &struct{}{}}},
		},
	}
}
