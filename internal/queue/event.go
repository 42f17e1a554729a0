// Package queue defines the broker payloads plus the publisher and
// consumer for assignment events.
package queue

// ChildAssignedEvent is published after a child is successfully
// assigned to a seat.  It carries enough detail for downstream
// consumers to log or notify without querying the database.
type ChildAssignedEvent struct {
	AssignmentID        uint64 `json:"assignment_id"`
	ScheduleSlotID      uint64 `json:"schedule_slot_id"`
	ChildID             uint64 `json:"child_id"`
	ChildName           string `json:"child_name"`
	VehicleAssignmentID uint64 `json:"vehicle_assignment_id"`
	VehicleName         string `json:"vehicle_name"`
	DriverName          string `json:"driver_name,omitempty"`
	AssignedAt          string `json:"assigned_at"`
}
