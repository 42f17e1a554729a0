package model

import "time"

// ChildAssignment records one child occupying one seat of a
// specific vehicle assignment within a schedule slot.  The pair
// (vehicle_assignment_id, child_id) is unique, and the number of
// rows per vehicle assignment never exceeds the assignment's
// effective capacity; both are enforced transactionally by the
// assignment service.
//
// Fields:
//  ID                  – primary key identifier.
//  ScheduleSlotID      – slot the seat belongs to.
//  ChildID             – child occupying the seat.
//  VehicleAssignmentID – vehicle assignment providing the seat.
//  CreatedAt           – when the seat was taken.
type ChildAssignment struct {
	ID                  uint64    // child_assignments.id
	ScheduleSlotID      uint64    // child_assignments.schedule_slot_id
	ChildID             uint64    // child_assignments.child_id
	VehicleAssignmentID uint64    // child_assignments.vehicle_assignment_id
	CreatedAt           time.Time // child_assignments.created_at
}

// ChildAssignmentDetail is a ChildAssignment joined with the names a
// caller wants to display or notify with: the child, the vehicle and
// the driver (when one is set).
type ChildAssignmentDetail struct {
	ChildAssignment
	ChildName   string  // children.name (joined)
	VehicleName string  // vehicles.name (joined)
	DriverName  *string // users.name of the driver (joined, nullable)
}
