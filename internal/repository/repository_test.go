package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"televent/internal/models"
)

// setupTestPool connects to the database named by TEST_DATABASE_URL and
// applies migrations. Tests in this file are integration tests and are
// skipped whenever that variable is unset or -short is passed.
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	if err := Migrate(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := OpenPool(context.Background(), dsn, 5, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func testUser(t *testing.T, users *UserRepository, userID int64) {
	t.Helper()
	require.NoError(t, users.EnsureExists(context.Background(), userID, "test-handle", "UTC"))
}

func TestEventLifecycle(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	users := NewUserRepository(pool)
	events := NewEventRepository(pool)
	attendees := NewAttendeeRepository(pool)

	ownerID := time.Now().UnixNano()
	testUser(t, users, ownerID)

	e := &models.Event{
		EventID:     uuid.New(),
		OwnerUserID: ownerID,
		UID:         uuid.NewString(),
		Summary:     "Planning meeting",
		Status:      models.StatusConfirmed,
		Timezone:    "UTC",
		Version:     1,
		ETag:        "initial-etag",
		Timing: models.Timing{
			Start: time.Now().Truncate(time.Second),
			End:   time.Now().Add(time.Hour).Truncate(time.Second),
		},
	}

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, InsertEvent(ctx, tx, e))
	_, err = ReplaceAttendees(ctx, tx, e.EventID, []models.EventAttendee{
		{Email: "alice@example.com", Role: models.RoleAttendee, Status: models.PartStatNeedsAction},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	got, err := events.GetByID(ctx, ownerID, e.EventID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Planning meeting", got.Summary)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	list, err := attendees.ListByEvent(ctx, e.EventID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice@example.com", list[0].Email)

	e.Summary = "Planning meeting (rescheduled)"
	e.Version = got.Version + 1
	e.ETag = "updated-etag"
	tx, err = pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, UpdateEvent(ctx, tx, e))
	require.NoError(t, tx.Commit(ctx))

	updated, err := events.GetByID(ctx, ownerID, e.EventID)
	require.NoError(t, err)
	assert.Equal(t, "Planning meeting (rescheduled)", updated.Summary)
	assert.Equal(t, got.Version+1, updated.Version)

	tx, err = pool.Begin(ctx)
	require.NoError(t, err)
	token, err := IncrementSyncToken(ctx, tx, ownerID)
	require.NoError(t, err)
	require.NoError(t, SoftDeleteEvent(ctx, tx, ownerID, e.EventID, token))
	require.NoError(t, tx.Commit(ctx))

	deleted, err := events.GetByID(ctx, ownerID, e.EventID)
	require.NoError(t, err)
	assert.Nil(t, deleted, "soft-deleted event must not surface from GetByID")

	changed, err := events.ListChangedSince(ctx, ownerID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, changed)
	last := changed[len(changed)-1]
	assert.False(t, last.DeletedAt.IsZero(), "soft-deleted tombstone must carry a DeletedAt")
	assert.Equal(t, models.StatusConfirmed, last.Status, "soft-delete must not clobber the event's own status")
}

func TestOutboxClaimAndFinalize(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	outbox := NewOutboxRepository(pool)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, InsertOutboxMessage(ctx, tx, models.KindEmail, []byte(`{"to":"x@example.com"}`)))
	require.NoError(t, tx.Commit(ctx))

	claimed, err := outbox.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, claimed)

	var succeeded []uuid.UUID
	for _, m := range claimed {
		if m.Kind == models.KindEmail {
			succeeded = append(succeeded, m.ID)
		}
	}
	require.NoError(t, outbox.FinalizeBatch(ctx, succeeded, nil, nil, nil, nil, nil))

	reclaimed, err := outbox.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	for _, m := range reclaimed {
		assert.NotContains(t, succeeded, m.ID)
	}
}
