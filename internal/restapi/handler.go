// Package restapi implements the JSON CRUD surface named in
// SPEC_FULL.md §4.5/§6 (the non-CalDAV REST API), adapted from the
// teacher's handlers/calendar.go: same respondJSON/respondError
// helpers and per-route validator use, restructured around a single
// owner collection instead of a per-request calendarId path segment.
package restapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"televent/internal/auth"
	"televent/internal/errs"
	"televent/internal/eventstore"
	"televent/internal/ical"
	"televent/internal/models"
	"televent/internal/tzvalidate"
)

type Handler struct {
	store     *eventstore.Store
	logger    *zap.Logger
	validator *validator.Validate
}

func NewHandler(store *eventstore.Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger, validator: validator.New()}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.list)
	r.Post("/events", h.create)
	r.Get("/events/{eventID}", h.get)
	r.Put("/events/{eventID}", h.update)
	r.Delete("/events/{eventID}", h.delete)
	r.Post("/events/{eventID}/respond", h.respond)
}

type eventRequest struct {
	Summary     string            `json:"summary" validate:"required"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	Timezone    string            `json:"timezone" validate:"required"`
	IsAllDay    bool              `json:"is_all_day"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	StartDate   string            `json:"start_date"`
	EndDate     string            `json:"end_date"`
	RRule       string            `json:"rrule"`
	Attendees   []attendeeRequest `json:"attendees"`
}

type attendeeRequest struct {
	Email          string  `json:"email" validate:"required,email"`
	InternalUserID *int64  `json:"internal_user_id"`
	Role           string  `json:"role"`
}

type eventResponse struct {
	EventID     uuid.UUID `json:"event_id"`
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	ETag        string    `json:"etag"`
	Version     int64     `json:"version"`
}

func toResponse(e *models.Event) eventResponse {
	return eventResponse{
		EventID:     e.EventID,
		UID:         e.UID,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Status:      string(e.Status),
		ETag:        e.ETag,
		Version:     e.Version,
	}
}

func (h *Handler) ownerID(r *http.Request) (int64, error) {
	return auth.UserID(r.Context())
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.Error("failed to encode response", zap.Error(err))
		}
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
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
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("unhandled restapi error", zap.Error(err))
		msg = http.StatusText(status)
	}
	h.respondJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.ownerID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	var events []*models.Event
	if from, to := r.URL.Query().Get("start"), r.URL.Query().Get("end"); from != "" && to != "" {
		start, err1 := time.Parse(time.RFC3339, from)
		end, err2 := time.Parse(time.RFC3339, to)
		if err1 != nil || err2 != nil {
			h.respondError(w, errs.BadRequestf("start/end must be RFC3339 timestamps"))
			return
		}
		events, err = h.store.ListInWindow(r.Context(), ownerID, start, end)
	} else {
		events, err = h.store.ListAll(r.Context(), ownerID)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}

	out := make([]eventResponse, len(events))
	for i, e := range events {
		out[i] = toResponse(e)
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.ownerID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		h.respondError(w, errs.BadRequestf("invalid event id"))
		return
	}

	e, err := h.store.Get(r.Context(), ownerID, eventID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toResponse(e))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.ownerID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	req, err := h.decodeAndValidate(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	e, err := h.buildEvent(ownerID, uuid.New(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.store.Create(r.Context(), e); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toResponse(e))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.ownerID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		h.respondError(w, errs.BadRequestf("invalid event id"))
		return
	}

	req, err := h.decodeAndValidate(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	existing, err := h.store.Get(r.Context(), ownerID, eventID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	e, err := h.buildEvent(ownerID, eventID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	e.UID = existing.UID

	if err := h.store.Update(r.Context(), e); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toResponse(e))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.ownerID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		h.respondError(w, errs.BadRequestf("invalid event id"))
		return
	}

	if err := h.store.Delete(r.Context(), ownerID, eventID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type respondRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Status string `json:"status" validate:"required,oneof=ACCEPTED DECLINED TENTATIVE"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.ownerID(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		h.respondError(w, errs.BadRequestf("invalid event id"))
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, errs.BadRequestf("invalid request body: %v", err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, errs.BadRequestf("validation failed: %v", err))
		return
	}

	if err := h.store.RespondRSVP(r.Context(), ownerID, eventID, req.Email, models.AttendeeStatus(req.Status)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeAndValidate(r *http.Request) (*eventRequest, error) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errs.BadRequestf("invalid request body: %v", err)
	}
	if err := h.validator.Struct(req); err != nil {
		return nil, errs.BadRequestf("validation failed: %v", err)
	}
	if err := tzvalidate.Validate(req.Timezone); err != nil {
		return nil, errs.BadRequestf("%v", err)
	}
	return &req, nil
}

func (h *Handler) buildEvent(ownerID int64, eventID uuid.UUID, req *eventRequest) (*models.Event, error) {
	e := &models.Event{
		EventID:     eventID,
		OwnerUserID: ownerID,
		UID:         eventID.String(),
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Status:      models.StatusConfirmed,
		Timezone:    req.Timezone,
		RRule:       req.RRule,
	}

	if req.IsAllDay {
		startDate, _, err := ical.ParseDateTime(req.StartDate)
		if err != nil {
			return nil, errs.BadRequestf("invalid start_date: %v", err)
		}
		endDate, _, err := ical.ParseDateTime(req.EndDate)
		if err != nil {
			return nil, errs.BadRequestf("invalid end_date: %v", err)
		}
		e.Timing = models.Timing{IsAllDay: true, StartDate: startDate, EndDate: endDate}
	} else {
		if !req.End.After(req.Start) {
			return nil, errs.BadRequestf("end must be after start")
		}
		e.Timing = models.Timing{Start: req.Start.UTC(), End: req.End.UTC()}
	}

	e.Attendees = make([]models.EventAttendee, len(req.Attendees))
	for i, a := range req.Attendees {
		role := models.AttendeeRole(a.Role)
		if role == "" {
			role = models.RoleAttendee
		}
		e.Attendees[i] = models.EventAttendee{
			Email:          a.Email,
			InternalUserID: a.InternalUserID,
			Role:           role,
			Status:         models.PartStatNeedsAction,
		}
	}

	return e, nil
}
