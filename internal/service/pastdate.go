package service

import "time"

// PastDateValidator decides whether a schedule slot's datetime has
// already elapsed.  Now is injectable so tests can pin the clock;
// when nil, time.Now is used.  Comparison happens on UTC instants;
// the timezone only affects how the local time is rendered in the
// PastSlotError message.
type PastDateValidator struct {
	Now func() time.Time
}

// AssertNotPast returns a *PastSlotError when startsAt lies before
// the current time.  The tz parameter is an IANA timezone name
// (the owning group's timezone); when it cannot be loaded, UTC is
// used for the error message only.
func (v *PastDateValidator) AssertNotPast(startsAt time.Time, tz string) error {
	now := time.Now
	if v != nil && v.Now != nil {
		now = v.Now
	}
	if startsAt.After(now().UTC()) {
		return nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return &PastSlotError{StartsAt: startsAt.UTC(), Location: loc}
}
