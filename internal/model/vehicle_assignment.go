package model

import "time"

// VehicleAssignment attaches one vehicle (and optionally a driver)
// to one schedule slot.  SeatOverride, when set, replaces the
// vehicle's nominal capacity for this assignment only; it may
// raise it (roof box removed, extra bench) or lower it (child seat
// installed).  VehicleName, Capacity and DriverName are joined from
// vehicles and users when the assignment is loaded.
//
// Fields:
//  ID             – primary key identifier.
//  ScheduleSlotID – slot the vehicle is attached to.
//  VehicleID      – vehicle reference.
//  VehicleName    – vehicle display name (joined).
//  Capacity       – nominal seat count of the vehicle (joined).
//  SeatOverride   – administrative capacity correction (nullable).
//  DriverID       – optional driving user.
//  DriverName     – driver display name (joined, nullable).
//  CreatedAt      – creation timestamp.
type VehicleAssignment struct {
	ID             uint64    // vehicle_assignments.id
	ScheduleSlotID uint64    // vehicle_assignments.schedule_slot_id
	VehicleID      uint64    // vehicle_assignments.vehicle_id
	VehicleName    string    // vehicles.name (joined)
	Capacity       int       // vehicles.capacity (joined)
	SeatOverride   *int      // vehicle_assignments.seat_override (nullable)
	DriverID       *uint64   // vehicle_assignments.driver_id (nullable)
	DriverName     *string   // users.name (joined, nullable)
	CreatedAt      time.Time // vehicle_assignments.created_at
}

// EffectiveCapacity returns the seat count actually enforced for
// this assignment: the seat override when present, otherwise the
// vehicle's nominal capacity.
func (va *VehicleAssignment) EffectiveCapacity() int {
	if va.SeatOverride != nil {
		return *va.SeatOverride
	}
	return va.Capacity
}
