package model

import "time"

// Family groups the users who share children and vehicles.  Every
// child and vehicle belongs to exactly one family, and any member
// of that family may act on them.  This struct corresponds to a
// row in the `families` table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – family display name (e.g. a surname).
//  CreatedAt – timestamp when the family was created.
//  UpdatedAt – timestamp of last update.
type Family struct {
	ID        uint64    // families.id
	Name      string    // families.name
	CreatedAt time.Time // families.created_at
	UpdatedAt time.Time // families.updated_at
}

// FamilyMember links a user to a family.  Membership is what the
// authorization checks walk: a user may act on a child or vehicle
// exactly when a family_members row connects them.
//
// Fields:
//  ID       – primary key identifier.
//  FamilyID – family the user belongs to.
//  UserID   – member user.
//  JoinedAt – when the membership was created.
type FamilyMember struct {
	ID       uint64    // family_members.id
	FamilyID uint64    // family_members.family_id
	UserID   uint64    // family_members.user_id
	JoinedAt time.Time // family_members.created_at
}

// Child is a passenger belonging to a family.  A child occupies one
// seat when assigned to a vehicle within a schedule slot.
//
// Fields:
//  ID        – primary key identifier.
//  FamilyID  – owning family.
//  Name      – child display name.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Child struct {
	ID        uint64    // children.id
	FamilyID  uint64    // children.family_id
	Name      string    // children.name
	CreatedAt time.Time // children.created_at
	UpdatedAt time.Time // children.updated_at
}
