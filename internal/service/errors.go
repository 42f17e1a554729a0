// Package service holds the business logic that must not live in
// HTTP handlers: the seat-capacity assignment guard and its
// collaborator contracts.  This file defines the error values the
// guard reports.  These sentinel values and typed errors allow the
// HTTP layer to distinguish failure scenarios and map them to
// status codes without string matching.
package service

import (
	"errors"
	"fmt"
	"time"
)

// ErrSlotNotFound is returned when the referenced schedule slot
// does not exist.  Handlers should translate this into HTTP 404.
var ErrSlotNotFound = errors.New("schedule slot not found")

// ErrVehicleAssignmentNotFound is returned when the referenced
// vehicle assignment does not exist or does not belong to the
// given schedule slot.  Handlers should translate this into 404.
var ErrVehicleAssignmentNotFound = errors.New("vehicle assignment not found")

// ErrForbidden is returned when the requesting user's family has no
// access to the child or to the slot's group.  Handlers should
// translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrAlreadyAssigned is returned on a duplicate assignment attempt
// for the same child and vehicle assignment.  Handlers should
// translate this into HTTP 409.
var ErrAlreadyAssigned = errors.New("child is already assigned to this vehicle")

// ErrNotAssigned is returned when an unassign request targets a
// child that holds no seat in the slot.  Handlers should translate
// this into HTTP 404.
var ErrNotAssigned = errors.New("child is not assigned in this slot")

// CapacityError reports that a vehicle assignment has no free seat
// left.  Current and Effective are carried so handlers and
// notifications can show the occupancy pair.  The message format is
// a stable contract relied on by clients.
type CapacityError struct {
	VehicleName string // display name of the full vehicle
	Current     int    // seats occupied at the time of the check
	Effective   int    // effective capacity (override or nominal)
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("Vehicle %s is at full capacity (%d/%d)", e.VehicleName, e.Current, e.Effective)
}

// PastSlotError reports that the target schedule slot's time has
// already elapsed.  The message renders the slot's start in the
// group's timezone so the user sees a familiar local time.
type PastSlotError struct {
	StartsAt time.Time      // slot start, UTC
	Location *time.Location // group timezone for display
}

func (e *PastSlotError) Error() string {
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("schedule slot at %s has already passed", e.StartsAt.In(loc).Format("2006-01-02 15:04 MST"))
}
