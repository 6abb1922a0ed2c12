package restapi

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"televent/internal/models"
)

func newTestHandler() *Handler {
	return &Handler{logger: zap.NewNop(), validator: validator.New()}
}

func TestDecodeAndValidateRejectsMissingSummary(t *testing.T) {
	h := newTestHandler()
	body := bytes.NewBufferString(`{"timezone":"UTC","start":"2024-01-01T10:00:00Z","end":"2024-01-01T11:00:00Z"}`)
	req := httptest.NewRequest("POST", "/events", body)

	_, err := h.decodeAndValidate(req)
	assert.Error(t, err)
}

func TestDecodeAndValidateRejectsUnknownTimezone(t *testing.T) {
	h := newTestHandler()
	body := bytes.NewBufferString(`{"summary":"Sync","timezone":"Not/AZone","start":"2024-01-01T10:00:00Z","end":"2024-01-01T11:00:00Z"}`)
	req := httptest.NewRequest("POST", "/events", body)

	_, err := h.decodeAndValidate(req)
	assert.Error(t, err)
}

func TestDecodeAndValidateAcceptsWellFormedRequest(t *testing.T) {
	h := newTestHandler()
	body := bytes.NewBufferString(`{"summary":"Sync","timezone":"UTC","start":"2024-01-01T10:00:00Z","end":"2024-01-01T11:00:00Z"}`)
	req := httptest.NewRequest("POST", "/events", body)

	got, err := h.decodeAndValidate(req)
	require.NoError(t, err)
	assert.Equal(t, "Sync", got.Summary)
}

func TestBuildEventTimedRejectsNonIncreasingWindow(t *testing.T) {
	h := newTestHandler()
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	req := &eventRequest{
		Summary:  "Bad window",
		Timezone: "UTC",
		Start:    start,
		End:      start,
	}

	_, err := h.buildEvent(1, uuid.New(), req)
	assert.Error(t, err)
}

func TestBuildEventAllDayParsesDateOnlyBounds(t *testing.T) {
	h := newTestHandler()
	req := &eventRequest{
		Summary:   "Conference",
		Timezone:  "UTC",
		IsAllDay:  true,
		StartDate: "20240301",
		EndDate:   "20240303",
	}

	e, err := h.buildEvent(1, uuid.New(), req)
	require.NoError(t, err)
	assert.True(t, e.Timing.IsAllDay)
	assert.Equal(t, 2024, e.Timing.StartDate.Year())
	assert.Equal(t, 3, e.Timing.EndDate.Day())
}

func TestBuildEventDefaultsAttendeeRoleAndStatus(t *testing.T) {
	h := newTestHandler()
	req := &eventRequest{
		Summary:  "Planning",
		Timezone: "UTC",
		Start:    time.Now(),
		End:      time.Now().Add(time.Hour),
		Attendees: []attendeeRequest{
			{Email: "a@example.com"},
		},
	}

	e, err := h.buildEvent(1, uuid.New(), req)
	require.NoError(t, err)
	require.Len(t, e.Attendees, 1)
	assert.Equal(t, models.RoleAttendee, e.Attendees[0].Role)
	assert.Equal(t, models.PartStatNeedsAction, e.Attendees[0].Status)
}

func TestToResponseCopiesClientVisibleFields(t *testing.T) {
	e := &models.Event{
		EventID: uuid.New(),
		UID:     "uid-1",
		Summary: "Sync",
		Status:  models.StatusConfirmed,
		ETag:    "abc123",
		Version: 3,
	}

	out := toResponse(e)
	assert.Equal(t, e.UID, out.UID)
	assert.Equal(t, "CONFIRMED", out.Status)
	assert.Equal(t, int64(3), out.Version)
}
