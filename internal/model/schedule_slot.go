package model

import "time"

// ScheduleSlot is a single dated occurrence of a group's transport
// event, e.g. "school run on 2026-09-01 07:45".  StartsAt is stored
// in UTC; the group's timezone decides how it is presented and
// whether the slot counts as past.  GroupName and Timezone are
// joined from carpool_groups when the slot is loaded.
//
// Fields:
//  ID        – primary key identifier.
//  GroupID   – owning carpool group.
//  StartsAt  – UTC datetime of the transport event.
//  Timezone  – group timezone (joined, not a column of this table).
//  GroupName – group display name (joined).
//  CreatedAt – creation timestamp.
type ScheduleSlot struct {
	ID        uint64    // schedule_slots.id
	GroupID   uint64    // schedule_slots.group_id
	StartsAt  time.Time // schedule_slots.starts_at (UTC)
	Timezone  string    // carpool_groups.timezone (joined)
	GroupName string    // carpool_groups.name (joined)
	CreatedAt time.Time // schedule_slots.created_at
}
