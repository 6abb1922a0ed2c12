package caldav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"televent/internal/models"
)

func TestInternalUserIDFromEmailRecognisesInternalForm(t *testing.T) {
	id, ok := internalUserIDFromEmail("tg_42@televent.internal")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestInternalUserIDFromEmailRejectsExternalAddress(t *testing.T) {
	_, ok := internalUserIDFromEmail("dave@example.com")
	assert.False(t, ok)
}

func TestResolveAttendeesPairsInternalUserIDAndSkipsSelf(t *testing.T) {
	attendees := []models.EventAttendee{
		{Email: "tg_7@televent.internal"},
		{Email: "tg_1@televent.internal"},
		{Email: "outside@example.com"},
	}

	got := resolveAttendees(attendees, 1)
	require.Len(t, got, 2, "self-reference to owner 1 is dropped")

	require.NotNil(t, got[0].InternalUserID)
	assert.Equal(t, int64(7), *got[0].InternalUserID)
	assert.Nil(t, got[1].InternalUserID)
}

func TestResolveAttendeesDedupesByEmailFirstWins(t *testing.T) {
	attendees := []models.EventAttendee{
		{Email: "dup@example.com", Role: models.RoleChair},
		{Email: "dup@example.com", Role: models.RoleAttendee},
	}

	got := resolveAttendees(attendees, 99)
	require.Len(t, got, 1)
	assert.Equal(t, models.RoleChair, got[0].Role)
}
