// Package repository defines the data access layer: raw SQL against
// MySQL, one repo per aggregate.  This file holds error values that
// are reused across multiple repositories.  These sentinel values
// allow higher layers such as handlers to distinguish between
// failure scenarios, e.g. ErrForbidden indicates that the current
// user is not authorized to act on a resource owned by someone
// else, while ErrConflict signals that an operation cannot proceed
// because of existing dependent records.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on
// a resource they do not own.  Handlers should translate this into
// an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because
// of conflicting state, such as joining a group a family is already
// a member of.  Handlers should translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrFamilyNotFound is returned when a family lookup fails.
var ErrFamilyNotFound = errors.New("family not found")

// ErrChildNotFound is returned when a child lookup fails.
var ErrChildNotFound = errors.New("child not found")

// ErrGroupNotFound is returned when a carpool group lookup fails.
var ErrGroupNotFound = errors.New("group not found")

// ErrVehicleNotFound is returned when a vehicle lookup fails.
var ErrVehicleNotFound = errors.New("vehicle not found")

// ErrSlotNotFound is returned when a schedule slot lookup fails.
// The service layer re-reports this as its own sentinel so that
// handlers depend on one error vocabulary.
var ErrSlotNotFound = errors.New("schedule slot not found")
