package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssertNotPastFutureSlot(t *testing.T) {
	v := &PastDateValidator{Now: func() time.Time {
		return time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	}}
	err := v.AssertNotPast(time.Date(2026, 9, 1, 7, 45, 0, 0, time.UTC), "Europe/Berlin")
	assert.NoError(t, err)
}

func TestAssertNotPastElapsedSlot(t *testing.T) {
	v := &PastDateValidator{Now: func() time.Time {
		return time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	}}
	err := v.AssertNotPast(time.Date(2026, 9, 1, 7, 45, 0, 0, time.UTC), "Europe/Berlin")
	var pastErr *PastSlotError
	assert.ErrorAs(t, err, &pastErr)
	// 07:45 UTC renders as 09:45 CEST in the group's timezone.
	assert.Contains(t, err.Error(), "09:45")
	assert.Contains(t, err.Error(), "has already passed")
}

func TestAssertNotPastComparesInstantsNotWallClocks(t *testing.T) {
	// Now is 07:00 UTC.  A slot at 06:45 UTC is past even though its
	// Berlin wall clock (08:45) is ahead of the UTC wall clock.
	v := &PastDateValidator{Now: func() time.Time {
		return time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC)
	}}
	err := v.AssertNotPast(time.Date(2026, 9, 1, 6, 45, 0, 0, time.UTC), "Europe/Berlin")
	assert.Error(t, err)
}

func TestAssertNotPastInvalidTimezoneFallsBackToUTC(t *testing.T) {
	v := &PastDateValidator{Now: func() time.Time {
		return time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	}}
	err := v.AssertNotPast(time.Date(2026, 9, 1, 7, 45, 0, 0, time.UTC), "Mars/Olympus")
	var pastErr *PastSlotError
	assert.ErrorAs(t, err, &pastErr)
	assert.Contains(t, err.Error(), "07:45 UTC")
}

func TestAssertNotPastExactNowIsPast(t *testing.T) {
	at := time.Date(2026, 9, 1, 7, 45, 0, 0, time.UTC)
	v := &PastDateValidator{Now: func() time.Time { return at }}
	// A slot starting exactly now can no longer be boarded.
	assert.Error(t, v.AssertNotPast(at, "UTC"))
}
