package caldav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"televent/internal/auth"
	"televent/internal/caldavxml"
	"televent/internal/eventstore"
	"televent/internal/models"
	"televent/internal/repository"
)

func sampleEvent() *models.Event {
	return &models.Event{
		EventID: uuid.New(),
		UID:     "event-1",
		Summary: "Team sync",
		Status:  models.StatusConfirmed,
		ETag:    "abc123",
		Timing: models.Timing{
			Start: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
		},
	}
}

func TestEventResponseHrefAndETag(t *testing.T) {
	e := sampleEvent()
	resp := eventResponse("alice", e)

	assert.Equal(t, "/caldav/alice/event-1.ics", resp.Href)
	require.Len(t, resp.PropStats, 1)
	assert.Equal(t, `"abc123"`, resp.PropStats[0].Prop.GetETag)
	assert.Contains(t, resp.PropStats[0].Prop.CalendarData, "BEGIN:VEVENT")
}

func TestDefaultSupportedReportsAdvertisesAllThree(t *testing.T) {
	set := defaultSupportedReports()
	require.Len(t, set.SupportedReport, 3)

	var sawQuery, sawMultiget, sawSync bool
	for _, r := range set.SupportedReport {
		sawQuery = sawQuery || r.Report.CalendarQuery != nil
		sawMultiget = sawMultiget || r.Report.CalendarMultiget != nil
		sawSync = sawSync || r.Report.SyncCollection != nil
	}
	assert.True(t, sawQuery)
	assert.True(t, sawMultiget)
	assert.True(t, sawSync)
}

func TestWriteMultiStatusSetsHeaders(t *testing.T) {
	ms := caldavxml.NewMultiStatus()
	ms.Responses = append(ms.Responses, eventResponse("alice", sampleEvent()))

	rec := httptest.NewRecorder()
	writeMultiStatus(rec, ms, zap.NewNop())

	assert.Equal(t, 207, rec.Code)
	assert.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Body.String(), "multistatus"))
}

func setupTestHandler(t *testing.T) (*Handler, int64) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, repository.Migrate(dsn))

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	users := repository.NewUserRepository(pool)
	ownerID := time.Now().UnixNano()
	require.NoError(t, users.EnsureExists(context.Background(), ownerID, "frank", "UTC"))

	h := NewHandler(eventstore.New(pool), users, zap.NewNop())
	return h, ownerID
}

func putRequest(ctx context.Context, uid string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPut, "/caldav/frank/"+uid+".ics", strings.NewReader(body))
	req = req.WithContext(ctx)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("identifier", "frank")
	rctx.URLParams.Add("uid", uid)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// TestPutPreservesAllDayEndDateOnUpdate exercises the §9 merge behavior:
// an all-day PUT always arrives without DTEND (the encoder never emits
// one), so updating must keep the previously stored end date rather
// than clearing it.
func TestPutPreservesAllDayEndDateOnUpdate(t *testing.T) {
	h, ownerID := setupTestHandler(t)
	ctx := auth.WithUserID(context.Background(), ownerID)

	uid := uuid.NewString()
	initial := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:" + uid +
		"\r\nSUMMARY:Conference\r\nDTSTART;VALUE=DATE:20240301\r\nDTEND;VALUE=DATE:20240303\r\nSTATUS:CONFIRMED\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	rec := httptest.NewRecorder()
	h.put(rec, putRequest(ctx, uid, initial))
	require.Equal(t, http.StatusCreated, rec.Code)

	updated := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:" + uid +
		"\r\nSUMMARY:Conference (renamed)\r\nDTSTART;VALUE=DATE:20240301\r\nSTATUS:CONFIRMED\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	rec2 := httptest.NewRecorder()
	h.put(rec2, putRequest(ctx, uid, updated))
	require.Equal(t, http.StatusNoContent, rec2.Code)

	e, err := h.store.GetByUID(ctx, ownerID, uid)
	require.NoError(t, err)
	assert.Equal(t, "Conference (renamed)", e.Summary)
	assert.Equal(t, 3, e.Timing.EndDate.Day(), "stored end date must survive an update that omits DTEND")
}

// TestPutRejectsMismatchedIdentifier exercises a PUT whose {identifier}
// is not the authenticated caller's: a handle that resolves to no user
// is answered with NotFound before the §4.4 ownership check runs.
func TestPutRejectsMismatchedIdentifier(t *testing.T) {
	h, ownerID := setupTestHandler(t)
	ctx := auth.WithUserID(context.Background(), ownerID)

	uid := uuid.NewString()
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:" + uid +
		"\r\nSUMMARY:Sneaky\r\nDTSTART:20240301T100000Z\r\nDTEND:20240301T110000Z\r\nSTATUS:CONFIRMED\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	req := httptest.NewRequest(http.MethodPut, "/caldav/someone-else/"+uid+".ics", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("identifier", "someone-else")
	rctx.URLParams.Add("uid", uid)
	req = req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.put(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "unknown handle resolves to NotFound before ownership is even checked")
}

// TestReadLimitedBodyRejectsOversizedBody exercises §7's "body too
// large ⇒ BadRequest" contract: an oversized body must be rejected
// outright, not silently truncated to the cap.
func TestReadLimitedBodyRejectsOversizedBody(t *testing.T) {
	body := strings.NewReader(strings.Repeat("x", 11))
	req := httptest.NewRequest(http.MethodPut, "/caldav/frank/x.ics", body)

	_, err := readLimitedBody(req, 10)
	require.Error(t, err)
}

func TestReadLimitedBodyAcceptsBodyAtExactLimit(t *testing.T) {
	body := strings.NewReader(strings.Repeat("x", 10))
	req := httptest.NewRequest(http.MethodPut, "/caldav/frank/x.ics", body)

	got, err := readLimitedBody(req, 10)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func propfindRequest(ctx context.Context, depth string) *http.Request {
	req := httptest.NewRequest("PROPFIND", "/caldav/frank", nil)
	if depth != "" {
		req.Header.Set("Depth", depth)
	}
	req = req.WithContext(ctx)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("identifier", "frank")
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// TestPropfindCollectionDefaultsDepthToZero exercises the §4.4 rule
// that an absent Depth header means collection-level metadata only,
// not the full child listing a Depth:1 request would return.
func TestPropfindCollectionDefaultsDepthToZero(t *testing.T) {
	h, ownerID := setupTestHandler(t)
	ctx := auth.WithUserID(context.Background(), ownerID)

	uid := uuid.NewString()
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:" + uid +
		"\r\nSUMMARY:Depth check\r\nDTSTART:20240301T100000Z\r\nDTEND:20240301T110000Z\r\nSTATUS:CONFIRMED\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	rec := httptest.NewRecorder()
	h.put(rec, putRequest(ctx, uid, body))
	require.Equal(t, http.StatusCreated, rec.Code)

	noDepth := httptest.NewRecorder()
	h.propfindCollection(noDepth, propfindRequest(ctx, ""))
	assert.Equal(t, 207, noDepth.Code)
	assert.NotContains(t, noDepth.Body.String(), uid+".ics", "absent Depth header must not list child events")

	depthOne := httptest.NewRecorder()
	h.propfindCollection(depthOne, propfindRequest(ctx, "1"))
	assert.Contains(t, depthOne.Body.String(), uid+".ics", "Depth:1 must list child events")
}

// TestPutResolvesInternalAttendeeEmail exercises §4.4 step 4 /
// §6's internal-email form end to end: an ATTENDEE using
// tg_<id>@televent.internal must come out of the store with
// InternalUserID populated.
func TestPutResolvesInternalAttendeeEmail(t *testing.T) {
	h, ownerID := setupTestHandler(t)
	ctx := auth.WithUserID(context.Background(), ownerID)

	uid := uuid.NewString()
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:" + uid +
		"\r\nSUMMARY:Planning\r\nDTSTART:20240301T100000Z\r\nDTEND:20240301T110000Z\r\n" +
		"ATTENDEE;ROLE=ATTENDEE:mailto:tg_555@televent.internal\r\nSTATUS:CONFIRMED\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	rec := httptest.NewRecorder()
	h.put(rec, putRequest(ctx, uid, body))
	require.Equal(t, http.StatusCreated, rec.Code)

	e, err := h.store.GetByUID(ctx, ownerID, uid)
	require.NoError(t, err)
	require.Len(t, e.Attendees, 1)
	require.NotNil(t, e.Attendees[0].InternalUserID)
	assert.Equal(t, int64(555), *e.Attendees[0].InternalUserID)
}
