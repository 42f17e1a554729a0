package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/carpoolio/carpool-api/internal/model"
)

// ScheduleSlotRepo manages schedule slots and the vehicle
// assignments attached to them.  Slot occupancy itself (child
// assignments) is written exclusively through the AssignmentStore
// transaction; this repo only reads it for rosters and listings.
type ScheduleSlotRepo struct {
	db *sql.DB
}

// NewScheduleSlotRepo constructs a ScheduleSlotRepo with the given
// DB handle.
func NewScheduleSlotRepo(db *sql.DB) *ScheduleSlotRepo { return &ScheduleSlotRepo{db: db} }

// DB exposes the underlying sql.DB for callers that need to begin
// transactions spanning multiple repositories.
func (r *ScheduleSlotRepo) DB() *sql.DB { return r.db }

// CreateSlot inserts a new schedule slot for a group.  StartsAt
// must be UTC.  On success the generated ID and creation timestamp
// are populated, along with the group name and timezone joins.
func (r *ScheduleSlotRepo) CreateSlot(ctx context.Context, s *model.ScheduleSlot) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO schedule_slots (group_id, starts_at) VALUES (?, ?)`,
		s.GroupID, s.StartsAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	got, err := r.GetSlot(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

// GetSlot retrieves a slot with its group name and timezone joined.
// Returns ErrSlotNotFound when no row exists.
func (r *ScheduleSlotRepo) GetSlot(ctx context.Context, id uint64) (*model.ScheduleSlot, error) {
	const q = `SELECT ss.id, ss.group_id, ss.starts_at, g.timezone, g.name, ss.created_at
	           FROM schedule_slots ss
	           JOIN carpool_groups g ON g.id = ss.group_id
	           WHERE ss.id = ?`
	var s model.ScheduleSlot
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.GroupID, &s.StartsAt, &s.Timezone, &s.GroupName, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

// DeleteSlot removes a slot.  Vehicle and child assignments cascade
// away via foreign keys.  Returns ErrSlotNotFound when no row was
// deleted.
func (r *ScheduleSlotRepo) DeleteSlot(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_slots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// SlotSummary is a slot row enriched with aggregate occupancy for
// group schedule listings.
type SlotSummary struct {
	ID            uint64    `json:"id"`
	GroupID       uint64    `json:"group_id"`
	StartsAt      time.Time `json:"starts_at"`
	VehicleCount  int       `json:"vehicle_count"`
	AssignedCount int       `json:"assigned_count"`
}

// ListSlotsByGroup returns the group's slots starting at or after
// the given time, oldest first, each with the number of attached
// vehicles and assigned children.
func (r *ScheduleSlotRepo) ListSlotsByGroup(ctx context.Context, groupID uint64, from time.Time) ([]SlotSummary, error) {
	const q = `SELECT ss.id, ss.group_id, ss.starts_at,
	                  (SELECT COUNT(*) FROM vehicle_assignments va WHERE va.schedule_slot_id = ss.id),
	                  (SELECT COUNT(*) FROM child_assignments ca WHERE ca.schedule_slot_id = ss.id)
	           FROM schedule_slots ss
	           WHERE ss.group_id = ? AND ss.starts_at >= ?
	           ORDER BY ss.starts_at`
	rows, err := r.db.QueryContext(ctx, q, groupID, from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]SlotSummary, 0)
	for rows.Next() {
		var s SlotSummary
		if err := rows.Scan(&s.ID, &s.GroupID, &s.StartsAt, &s.VehicleCount, &s.AssignedCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateVehicleAssignment attaches a vehicle (and optional driver,
// optional seat override) to a slot.  On success the record is
// re-read with the vehicle and driver joins populated.
func (r *ScheduleSlotRepo) CreateVehicleAssignment(ctx context.Context, va *model.VehicleAssignment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO vehicle_assignments (schedule_slot_id, vehicle_id, driver_id, seat_override) VALUES (?, ?, ?, ?)`,
		va.ScheduleSlotID, va.VehicleID, va.DriverID, va.SeatOverride)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	va.ID = uint64(id)
	got, err := r.GetVehicleAssignment(ctx, va.ID)
	if err != nil {
		return err
	}
	*va = *got
	return nil
}

// GetVehicleAssignment retrieves a vehicle assignment with its
// vehicle and driver joins.  Returns
// ErrVehicleAssignmentNotFound when no row exists.
func (r *ScheduleSlotRepo) GetVehicleAssignment(ctx context.Context, id uint64) (*model.VehicleAssignment, error) {
	const q = `SELECT va.id, va.schedule_slot_id, va.vehicle_id, v.name, v.capacity,
	                  va.seat_override, va.driver_id, u.name, va.created_at
	           FROM vehicle_assignments va
	           JOIN vehicles v ON v.id = va.vehicle_id
	           LEFT JOIN users u ON u.id = va.driver_id
	           WHERE va.id = ?`
	var va model.VehicleAssignment
	var override sql.NullInt64
	var driverID sql.NullInt64
	var driverName sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&va.ID, &va.ScheduleSlotID, &va.VehicleID, &va.VehicleName, &va.Capacity,
		&override, &driverID, &driverName, &va.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVehicleAssignmentNotFound
		}
		return nil, err
	}
	if override.Valid {
		n := int(override.Int64)
		va.SeatOverride = &n
	}
	if driverID.Valid {
		d := uint64(driverID.Int64)
		va.DriverID = &d
	}
	if driverName.Valid {
		n := driverName.String
		va.DriverName = &n
	}
	return &va, nil
}

// ErrVehicleAssignmentNotFound indicates a missing vehicle
// assignment row.
var ErrVehicleAssignmentNotFound = errors.New("vehicle assignment not found")

// UpdateSeatOverride sets or clears (nil) the seat override of a
// vehicle assignment.  Returns ErrVehicleAssignmentNotFound when no
// row matched.
func (r *ScheduleSlotRepo) UpdateSeatOverride(ctx context.Context, id uint64, override *int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE vehicle_assignments SET seat_override = ? WHERE id = ?`, override, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// RowsAffected is 0 both for a missing row and for a no-op
	// update; distinguish with an existence check.
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM vehicle_assignments WHERE id = ?)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrVehicleAssignmentNotFound
		}
	}
	return nil
}

// DeleteVehicleAssignment removes a vehicle assignment and, when it
// was the slot's last one, the now-empty slot as well.  Both writes
// run in one transaction.  Child assignments cascade away via
// foreign keys.
func (r *ScheduleSlotRepo) DeleteVehicleAssignment(ctx context.Context, id uint64) error {
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
	var slotID uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT schedule_slot_id FROM vehicle_assignments WHERE id = ?`, id).Scan(&slotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVehicleAssignmentNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vehicle_assignments WHERE id = ?`, id); err != nil {
		return err
	}
	var remaining int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vehicle_assignments WHERE schedule_slot_id = ?`, slotID).Scan(&remaining); err != nil {
		return err
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_slots WHERE id = ?`, slotID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RosterVehicle is one vehicle assignment of a slot together with
// its riders, as returned by SlotRoster.
type RosterVehicle struct {
	AssignmentID uint64   `json:"assignment_id"`
	VehicleName  string   `json:"vehicle_name"`
	DriverName   *string  `json:"driver_name,omitempty"`
	Occupied     int      `json:"occupied"`
	Capacity     int      `json:"capacity"`
	Children     []string `json:"children"`
}

// SlotRoster lists the slot's vehicle assignments with effective
// capacities and the names of assigned children, ordered by vehicle
// name.  Two queries: one for the vehicles, one for all riders.
func (r *ScheduleSlotRepo) SlotRoster(ctx context.Context, slotID uint64) ([]RosterVehicle, error) {
	const q = `SELECT va.id, v.name, u.name, v.capacity, va.seat_override
	           FROM vehicle_assignments va
	           JOIN vehicles v ON v.id = va.vehicle_id
	           LEFT JOIN users u ON u.id = va.driver_id
	           WHERE va.schedule_slot_id = ?
	           ORDER BY v.name`
	rows, err := r.db.QueryContext(ctx, q, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roster := make([]RosterVehicle, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var rv RosterVehicle
		var driver sql.NullString
		var capacity int
		var override sql.NullInt64
		if err := rows.Scan(&rv.AssignmentID, &rv.VehicleName, &driver, &capacity, &override); err != nil {
			return nil, err
		}
		if driver.Valid {
			d := driver.String
			rv.DriverName = &d
		}
		rv.Capacity = capacity
		if override.Valid {
			rv.Capacity = int(override.Int64)
		}
		rv.Children = []string{}
		index[rv.AssignmentID] = len(roster)
		roster = append(roster, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		return roster, nil
	}
	const childQ = `SELECT ca.vehicle_assignment_id, c.name
	                FROM child_assignments ca
	                JOIN children c ON c.id = ca.child_id
	                WHERE ca.schedule_slot_id = ?
	                ORDER BY c.name`
	crows, err := r.db.QueryContext(ctx, childQ, slotID)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var vaID uint64
		var name string
		if err := crows.Scan(&vaID, &name); err != nil {
			return nil, err
		}
		idx, ok := index[vaID]
		if !ok {
			continue
		}
		roster[idx].Children = append(roster[idx].Children, name)
		roster[idx].Occupied++
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}
	return roster, nil
}

// AssignmentSummary is one of a user's upcoming child assignments,
// as returned by AssignmentsOfUser.
type AssignmentSummary struct {
	SlotID      uint64    `json:"slot_id"`
	GroupName   string    `json:"group_name"`
	StartsAt    time.Time `json:"starts_at"`
	ChildName   string    `json:"child_name"`
	VehicleName string    `json:"vehicle_name"`
	DriverName  *string   `json:"driver_name,omitempty"`
}

// AssignmentsOfUser lists the upcoming seat occupations of the
// user's family children, soonest first.
func (r *ScheduleSlotRepo) AssignmentsOfUser(ctx context.Context, userID uint64, from time.Time) ([]AssignmentSummary, error) {
	const q = `SELECT ss.id, g.name, ss.starts_at, c.name, v.name, u.name
	           FROM child_assignments ca
	           JOIN children c ON c.id = ca.child_id
	           JOIN family_members fm ON fm.family_id = c.family_id
	           JOIN schedule_slots ss ON ss.id = ca.schedule_slot_id
	           JOIN carpool_groups g ON g.id = ss.group_id
	           JOIN vehicle_assignments va ON va.id = ca.vehicle_assignment_id
	           JOIN vehicles v ON v.id = va.vehicle_id
	           LEFT JOIN users u ON u.id = va.driver_id
	           WHERE fm.user_id = ? AND ss.starts_at >= ?
	           ORDER BY ss.starts_at, c.name`
	rows, err := r.db.QueryContext(ctx, q, userID, from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AssignmentSummary, 0)
	for rows.Next() {
		var a AssignmentSummary
		var driver sql.NullString
		if err := rows.Scan(&a.SlotID, &a.GroupName, &a.StartsAt, &a.ChildName, &a.VehicleName, &driver); err != nil {
			return nil, err
		}
		if driver.Valid {
			d := driver.String
			a.DriverName = &d
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
