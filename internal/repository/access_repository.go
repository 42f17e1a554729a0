package repository

import (
	"context"
	"database/sql"
)

// AccessRepo answers the authorization questions the assignment
// guard delegates.  It implements service.Authorizer.  Both checks
// walk family membership: a user may act on a child when they share
// a family, and a user belongs to a group when their family joined
// it.  The checks run against the pool, outside the guard's
// transaction; access rights are not part of the racing state.
type AccessRepo struct {
	db *sql.DB
}

// NewAccessRepo constructs an AccessRepo with the given DB handle.
func NewAccessRepo(db *sql.DB) *AccessRepo { return &AccessRepo{db: db} }

// UserCanAccessChild reports whether the child belongs to a family
// the user is a member of.  A missing child simply yields false.
func (r *AccessRepo) UserCanAccessChild(ctx context.Context, userID, childID uint64) (bool, error) {
	const q = `SELECT EXISTS(
	             SELECT 1 FROM children c
	             JOIN family_members fm ON fm.family_id = c.family_id
	             WHERE c.id = ? AND fm.user_id = ?)`
	var ok bool
	err := r.db.QueryRowContext(ctx, q, childID, userID).Scan(&ok)
	return ok, err
}

// UserFamilyInGroup reports whether the user's family is a member
// of the group.
func (r *AccessRepo) UserFamilyInGroup(ctx context.Context, userID, groupID uint64) (bool, error) {
	const q = `SELECT EXISTS(
	             SELECT 1 FROM group_families gf
	             JOIN family_members fm ON fm.family_id = gf.family_id
	             WHERE gf.group_id = ? AND fm.user_id = ?)`
	var ok bool
	err := r.db.QueryRowContext(ctx, q, groupID, userID).Scan(&ok)
	return ok, err
}
