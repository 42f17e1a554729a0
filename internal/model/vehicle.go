package model

import "time"

// Vehicle is a family-owned car that can be attached to schedule
// slots.  Capacity is the nominal number of passenger seats; a
// vehicle assignment may override it per slot (see
// VehicleAssignment.SeatOverride).
//
// Fields:
//  ID        – primary key identifier.
//  FamilyID  – owning family.
//  Name      – display name (e.g. "Blue Van").
//  Capacity  – nominal passenger seat count.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Vehicle struct {
	ID        uint64    // vehicles.id
	FamilyID  uint64    // vehicles.family_id
	Name      string    // vehicles.name
	Capacity  int       // vehicles.capacity
	CreatedAt time.Time // vehicles.created_at
	UpdatedAt time.Time // vehicles.updated_at
}
