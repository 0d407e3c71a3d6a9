package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduledAtUTC(t *testing.T) {
	post := &ScheduledPost{
		ScheduledDate: "2024-01-01",
		ScheduledTime: "09:00",
		Timezone:      "UTC",
	}

	at, err := post.ScheduledAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), at)
}

func TestScheduledAtNormalizesTimezone(t *testing.T) {
	post := &ScheduledPost{
		ScheduledDate: "2024-06-15",
		ScheduledTime: "09:00",
		Timezone:      "America/New_York",
	}

	at, err := post.ScheduledAt()
	require.NoError(t, err)
	// EDT is UTC-4 in June.
	assert.Equal(t, time.Date(2024, 6, 15, 13, 0, 0, 0, time.UTC), at)
}

func TestScheduledAtEmptyTimezoneDefaultsToUTC(t *testing.T) {
	post := &ScheduledPost{
		ScheduledDate: "2024-01-01",
		ScheduledTime: "09:00",
	}

	at, err := post.ScheduledAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), at)
}

func TestScheduledAtUnknownTimezone(t *testing.T) {
	post := &ScheduledPost{
		ScheduledDate: "2024-01-01",
		ScheduledTime: "09:00",
		Timezone:      "Mars/Olympus_Mons",
	}

	_, err := post.ScheduledAt()
	assert.Error(t, err)
}

func TestPublishResultRetryable(t *testing.T) {
	assert.True(t, PublishResult{ErrorClass: ErrorClassTransient}.Retryable())
	assert.False(t, PublishResult{Success: true}.Retryable())
	assert.False(t, PublishResult{ErrorClass: ErrorClassValidation}.Retryable())
	assert.False(t, PublishResult{ErrorClass: ErrorClassAuthExpired}.Retryable())
	assert.False(t, PublishResult{ErrorClass: ErrorClassConfiguration}.Retryable())
}
