package model

import "time"

// Group is a carpool group: a set of families that share transport
// to the same destination.  The group's timezone is the reference
// for deciding whether a schedule slot lies in the past and for
// rendering local times in error messages.  The table is named
// `carpool_groups` to avoid the reserved word GROUPS in SQL.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – group display name (e.g. a school name).
//  Timezone  – IANA timezone name (e.g. "Europe/Berlin").
//  CreatedBy – user ID of the coordinator who created the group.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Group struct {
	ID        uint64    // carpool_groups.id
	Name      string    // carpool_groups.name
	Timezone  string    // carpool_groups.timezone
	CreatedBy uint64    // carpool_groups.created_by
	CreatedAt time.Time // carpool_groups.created_at
	UpdatedAt time.Time // carpool_groups.updated_at
}

// GroupFamily links a family to a carpool group.  Only children of
// member families may ride in the group's slots, and only member
// families may see the group's schedule.
//
// Fields:
//  ID       – primary key identifier.
//  GroupID  – group the family joined.
//  FamilyID – member family.
//  JoinedAt – when the membership was created.
type GroupFamily struct {
	ID       uint64    // group_families.id
	GroupID  uint64    // group_families.group_id
	FamilyID uint64    // group_families.family_id
	JoinedAt time.Time // group_families.created_at
}
