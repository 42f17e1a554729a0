package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/carpoolio/carpool-api/internal/model"
	"github.com/carpoolio/carpool-api/internal/service"
)

// AssignmentStore is the SQL implementation of service.Store, the
// transactional backend of the seat-capacity assignment guard.
// Transactions run under serializable isolation and the vehicle
// assignment row is fetched FOR UPDATE, so the guard's
// count-then-insert sequence is atomic with respect to concurrent
// transactions on the same assignment: the second writer blocks on
// the row lock and, once it proceeds, sees the first writer's
// committed seat.
type AssignmentStore struct {
	db *sql.DB
}

// NewAssignmentStore constructs an AssignmentStore with the given
// DB handle.
func NewAssignmentStore(db *sql.DB) *AssignmentStore { return &AssignmentStore{db: db} }

// InTx runs fn inside one serializable transaction.  Any error from
// fn rolls the transaction back and is returned unchanged; there is
// no retry here: a capacity conflict is final and transient
// serialization failures are the caller's concern.
func (s *AssignmentStore) InTx(ctx context.Context, fn func(tx service.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(&assignmentTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ScheduleSlot is the plain (pool, non-locking) slot read used by
// pure queries.
func (s *AssignmentStore) ScheduleSlot(ctx context.Context, slotID uint64) (*model.ScheduleSlot, error) {
	return scanScheduleSlot(s.db.QueryRowContext(ctx, slotQuery, slotID))
}

// AvailableChildren lists the children of the user's family whose
// family belongs to the slot's group and who do not already occupy
// a seat anywhere in the slot.
func (s *AssignmentStore) AvailableChildren(ctx context.Context, slotID, userID uint64) ([]model.Child, error) {
	const q = `SELECT c.id, c.family_id, c.name, c.created_at, c.updated_at
	           FROM children c
	           JOIN family_members fm ON fm.family_id = c.family_id
	           JOIN schedule_slots ss ON ss.id = ?
	           JOIN group_families gf ON gf.group_id = ss.group_id AND gf.family_id = c.family_id
	           WHERE fm.user_id = ?
	             AND NOT EXISTS (
	               SELECT 1 FROM child_assignments ca
	               WHERE ca.schedule_slot_id = ss.id AND ca.child_id = c.id)
	           ORDER BY c.name`
	rows, err := s.db.QueryContext(ctx, q, slotID, userID)
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

// assignmentTx adapts one *sql.Tx to the service.Tx contract.
type assignmentTx struct {
	tx *sql.Tx
}

const slotQuery = `SELECT ss.id, ss.group_id, ss.starts_at, g.timezone, g.name, ss.created_at
                   FROM schedule_slots ss
                   JOIN carpool_groups g ON g.id = ss.group_id
                   WHERE ss.id = ?`

// scanScheduleSlot maps a slot row onto the model, translating a
// missing row into the service sentinel.
func scanScheduleSlot(row *sql.Row) (*model.ScheduleSlot, error) {
	var s model.ScheduleSlot
	err := row.Scan(&s.ID, &s.GroupID, &s.StartsAt, &s.Timezone, &s.GroupName, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, service.ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (t *assignmentTx) ScheduleSlot(ctx context.Context, slotID uint64) (*model.ScheduleSlot, error) {
	return scanScheduleSlot(t.tx.QueryRowContext(ctx, slotQuery, slotID))
}

// VehicleAssignmentForUpdate fetches the assignment row with its
// vehicle and driver joins and locks it.  FOR UPDATE on the
// vehicle_assignments row is the serialization point: every
// concurrent assignment for the same vehicle queues here.
func (t *assignmentTx) VehicleAssignmentForUpdate(ctx context.Context, slotID, assignmentID uint64) (*model.VehicleAssignment, error) {
	const q = `SELECT va.id, va.schedule_slot_id, va.vehicle_id, v.name, v.capacity,
	                  va.seat_override, va.driver_id, u.name, va.created_at
	           FROM vehicle_assignments va
	           JOIN vehicles v ON v.id = va.vehicle_id
	           LEFT JOIN users u ON u.id = va.driver_id
	           WHERE va.id = ? AND va.schedule_slot_id = ?
	           FOR UPDATE`
	var va model.VehicleAssignment
	var override sql.NullInt64
	var driverID sql.NullInt64
	var driverName sql.NullString
	err := t.tx.QueryRowContext(ctx, q, assignmentID, slotID).Scan(
		&va.ID, &va.ScheduleSlotID, &va.VehicleID, &va.VehicleName, &va.Capacity,
		&override, &driverID, &driverName, &va.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, service.ErrVehicleAssignmentNotFound
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

func (t *assignmentTx) HasChildAssignment(ctx context.Context, assignmentID, childID uint64) (bool, error) {
	var ok bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM child_assignments WHERE vehicle_assignment_id = ? AND child_id = ?)`,
		assignmentID, childID).Scan(&ok)
	return ok, err
}

func (t *assignmentTx) CountChildAssignments(ctx context.Context, assignmentID uint64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM child_assignments WHERE vehicle_assignment_id = ?`,
		assignmentID).Scan(&n)
	return n, err
}

func (t *assignmentTx) InsertChildAssignment(ctx context.Context, rec *model.ChildAssignment) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO child_assignments (schedule_slot_id, child_id, vehicle_assignment_id) VALUES (?, ?, ?)`,
		rec.ScheduleSlotID, rec.ChildID, rec.VehicleAssignmentID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	return t.tx.QueryRowContext(ctx,
		`SELECT created_at FROM child_assignments WHERE id = ?`, rec.ID).Scan(&rec.CreatedAt)
}

func (t *assignmentTx) ChildAssignmentDetail(ctx context.Context, assignmentID uint64) (*model.ChildAssignmentDetail, error) {
	const q = `SELECT ca.id, ca.schedule_slot_id, ca.child_id, ca.vehicle_assignment_id, ca.created_at,
	                  c.name, v.name, u.name
	           FROM child_assignments ca
	           JOIN children c ON c.id = ca.child_id
	           JOIN vehicle_assignments va ON va.id = ca.vehicle_assignment_id
	           JOIN vehicles v ON v.id = va.vehicle_id
	           LEFT JOIN users u ON u.id = va.driver_id
	           WHERE ca.id = ?`
	var d model.ChildAssignmentDetail
	var driver sql.NullString
	err := t.tx.QueryRowContext(ctx, q, assignmentID).Scan(
		&d.ID, &d.ScheduleSlotID, &d.ChildID, &d.VehicleAssignmentID, &d.CreatedAt,
		&d.ChildName, &d.VehicleName, &driver,
	)
	if err != nil {
		return nil, err
	}
	if driver.Valid {
		n := driver.String
		d.DriverName = &n
	}
	return &d, nil
}

func (t *assignmentTx) DeleteChildAssignment(ctx context.Context, slotID, childID uint64) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM child_assignments WHERE schedule_slot_id = ? AND child_id = ?`,
		slotID, childID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
