package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/carpoolio/carpool-api/internal/model"
)

// FamilyRepo provides persistence for families, family members and
// children.  Families are the ownership boundary of the system:
// whoever shares a family may act on its children and vehicles.
type FamilyRepo struct {
	db *sql.DB
}

// NewFamilyRepo constructs a FamilyRepo bound to the given database.
func NewFamilyRepo(db *sql.DB) *FamilyRepo { return &FamilyRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *FamilyRepo) DB() *sql.DB { return r.db }

// Create inserts a new family and immediately adds the creating
// user as its first member.  Both writes run in one transaction so
// a family can never exist without a member.  On success the
// generated ID and timestamps are populated on the given family.
func (r *FamilyRepo) Create(ctx context.Context, f *model.Family, creatorID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, `INSERT INTO families (name) VALUES (?)`, f.Name)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO family_members (family_id, user_id) VALUES (?, ?)`, f.ID, creatorID); err != nil {
		return err
	}
	// Read the row back to populate DB-default timestamps.
	const sel = `SELECT id, name, created_at, updated_at FROM families WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, f.ID).Scan(&f.ID, &f.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID retrieves a family by its ID.  Returns ErrFamilyNotFound
// when no row exists.
func (r *FamilyRepo) GetByID(ctx context.Context, id uint64) (*model.Family, error) {
	const q = `SELECT id, name, created_at, updated_at FROM families WHERE id = ?`
	var f model.Family
	err := r.db.QueryRowContext(ctx, q, id).Scan(&f.ID, &f.Name, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFamilyNotFound
		}
		return nil, err
	}
	return &f, nil
}

// FamilyOfUser returns the ID of the family the user belongs to.
// Returns sql.ErrNoRows when the user has not created or joined a
// family yet.  A user belongs to at most one family.
func (r *FamilyRepo) FamilyOfUser(ctx context.Context, userID uint64) (uint64, error) {
	var familyID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT family_id FROM family_members WHERE user_id = ? LIMIT 1`, userID).Scan(&familyID)
	return familyID, err
}

// IsMember reports whether userID belongs to familyID.
func (r *FamilyRepo) IsMember(ctx context.Context, familyID, userID uint64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM family_members WHERE family_id = ? AND user_id = ?)`,
		familyID, userID).Scan(&ok)
	return ok, err
}

// AddMember attaches an existing user to a family.  Returns
// ErrConflict when the user is already in a family; the unique
// index on family_members.user_id enforces single membership.
func (r *FamilyRepo) AddMember(ctx context.Context, familyID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO family_members (family_id, user_id) VALUES (?, ?)`, familyID, userID)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrConflict
	}
	return err
}

// CreateChild inserts a child into a family.  On success the
// generated ID and timestamps are populated on the given child.
func (r *FamilyRepo) CreateChild(ctx context.Context, c *model.Child) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO children (family_id, name) VALUES (?, ?)`, c.FamilyID, c.Name)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	const sel = `SELECT id, family_id, name, created_at, updated_at FROM children WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, c.ID).Scan(&c.ID, &c.FamilyID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
}

// ChildrenOfUser lists the children of the family the user belongs
// to, ordered by name.  A user without a family gets an empty list.
func (r *FamilyRepo) ChildrenOfUser(ctx context.Context, userID uint64) ([]model.Child, error) {
	const q = `SELECT c.id, c.family_id, c.name, c.created_at, c.updated_at
	           FROM children c
	           JOIN family_members fm ON fm.family_id = c.family_id
	           WHERE fm.user_id = ?
	           ORDER BY c.name`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	children := make([]model.Child, 0)
	for rows.Next() {
		var c model.Child
		if err := rows.Scan(&c.ID, &c.FamilyID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return children, nil
}
