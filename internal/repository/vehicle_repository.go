package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/carpoolio/carpool-api/internal/model"
)

// VehicleRepo manages persistence for family vehicles.
type VehicleRepo struct {
	db *sql.DB
}

// NewVehicleRepo constructs a VehicleRepo with the given DB handle.
func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

// Create inserts a new vehicle.  FamilyID, Name and Capacity must
// be set by the caller; capacity validation happens in the handler.
// On success the generated ID and timestamps are populated.
func (r *VehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO vehicles (family_id, name, capacity) VALUES (?, ?, ?)`,
		v.FamilyID, v.Name, v.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	const sel = `SELECT id, family_id, name, capacity, created_at, updated_at FROM vehicles WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, v.ID).Scan(&v.ID, &v.FamilyID, &v.Name, &v.Capacity, &v.CreatedAt, &v.UpdatedAt)
}

// GetByID retrieves a vehicle by its ID.  Returns ErrVehicleNotFound
// when no row exists.
func (r *VehicleRepo) GetByID(ctx context.Context, id uint64) (*model.Vehicle, error) {
	const q = `SELECT id, family_id, name, capacity, created_at, updated_at FROM vehicles WHERE id = ?`
	var v model.Vehicle
	err := r.db.QueryRowContext(ctx, q, id).Scan(&v.ID, &v.FamilyID, &v.Name, &v.Capacity, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return &v, nil
}

// VehiclesOfUser lists the vehicles of the user's family, ordered
// by name.
func (r *VehicleRepo) VehiclesOfUser(ctx context.Context, userID uint64) ([]model.Vehicle, error) {
	const q = `SELECT v.id, v.family_id, v.name, v.capacity, v.created_at, v.updated_at
	           FROM vehicles v
	           JOIN family_members fm ON fm.family_id = v.family_id
	           WHERE fm.user_id = ?
	           ORDER BY v.name`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	vehicles := make([]model.Vehicle, 0)
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.FamilyID, &v.Name, &v.Capacity, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vehicles, nil
}
