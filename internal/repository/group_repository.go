package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/carpoolio/carpool-api/internal/model"
)

// GroupRepo manages carpool groups and their family memberships.
// The table is named carpool_groups because GROUPS is a reserved
// word in MySQL 8.
type GroupRepo struct {
	db *sql.DB
}

// NewGroupRepo constructs a GroupRepo with the given DB handle.
func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{db: db} }

// Create inserts a new carpool group.  Name, Timezone and CreatedBy
// must be set; the handler validates the timezone before calling.
// On success the generated ID and timestamps are populated.
func (r *GroupRepo) Create(ctx context.Context, g *model.Group) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO carpool_groups (name, timezone, created_by) VALUES (?, ?, ?)`,
		g.Name, g.Timezone, g.CreatedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = uint64(id)
	const sel = `SELECT id, name, timezone, created_by, created_at, updated_at FROM carpool_groups WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, g.ID).Scan(&g.ID, &g.Name, &g.Timezone, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
}

// GetByID retrieves a group by its ID.  Returns ErrGroupNotFound
// when no row exists.
func (r *GroupRepo) GetByID(ctx context.Context, id uint64) (*model.Group, error) {
	const q = `SELECT id, name, timezone, created_by, created_at, updated_at FROM carpool_groups WHERE id = ?`
	var g model.Group
	err := r.db.QueryRowContext(ctx, q, id).Scan(&g.ID, &g.Name, &g.Timezone, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &g, nil
}

// JoinFamily adds a family to a group.  Returns ErrConflict when
// the family already joined; the unique index on
// (group_id, family_id) enforces single membership.
func (r *GroupRepo) JoinFamily(ctx context.Context, groupID, familyID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_families (group_id, family_id) VALUES (?, ?)`, groupID, familyID)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrConflict
	}
	return err
}

// GroupsOfUser lists the groups the user's family belongs to,
// ordered by name.
func (r *GroupRepo) GroupsOfUser(ctx context.Context, userID uint64) ([]model.Group, error) {
	const q = `SELECT g.id, g.name, g.timezone, g.created_by, g.created_at, g.updated_at
	           FROM carpool_groups g
	           JOIN group_families gf ON gf.group_id = g.id
	           JOIN family_members fm ON fm.family_id = gf.family_id
	           WHERE fm.user_id = ?
	           ORDER BY g.name`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	groups := make([]model.Group, 0)
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Timezone, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// IsCoordinator reports whether the user created the group.  Group
// coordinators manage schedule slots and vehicle assignments.
func (r *GroupRepo) IsCoordinator(ctx context.Context, groupID, userID uint64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM carpool_groups WHERE id = ? AND created_by = ?)`,
		groupID, userID).Scan(&ok)
	return ok, err
}
