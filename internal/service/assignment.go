package service

import (
	"context"
	"time"

	"github.com/carpoolio/carpool-api/internal/model"
)

// Tx is the view of the data store the guard sees inside one
// transaction.  Every method hits the store; the guard holds no
// state between calls.  Implementations must make the sequence
// "fetch assignment, count, insert" atomic with respect to other
// concurrent transactions on the same vehicle assignment: the SQL
// implementation locks the vehicle_assignments row FOR UPDATE under
// serializable isolation, the in-memory test store serializes whole
// transactions behind a mutex.
type Tx interface {
	// ScheduleSlot fetches a slot with its group's name and
	// timezone joined.  Returns ErrSlotNotFound when missing.
	ScheduleSlot(ctx context.Context, slotID uint64) (*model.ScheduleSlot, error)
	// VehicleAssignmentForUpdate fetches an assignment belonging to
	// the given slot and acquires whatever lock the store needs to
	// keep the subsequent count-then-insert atomic.  Returns
	// ErrVehicleAssignmentNotFound when missing or attached to a
	// different slot.
	VehicleAssignmentForUpdate(ctx context.Context, slotID, assignmentID uint64) (*model.VehicleAssignment, error)
	// HasChildAssignment reports whether the (assignment, child)
	// pair already holds a seat.
	HasChildAssignment(ctx context.Context, assignmentID, childID uint64) (bool, error)
	// CountChildAssignments returns the current occupancy of the
	// vehicle assignment.
	CountChildAssignments(ctx context.Context, assignmentID uint64) (int, error)
	// InsertChildAssignment persists the new seat occupation and
	// populates the generated ID and timestamp on the record.
	InsertChildAssignment(ctx context.Context, rec *model.ChildAssignment) error
	// ChildAssignmentDetail loads an assignment with child, vehicle
	// and driver names joined.
	ChildAssignmentDetail(ctx context.Context, assignmentID uint64) (*model.ChildAssignmentDetail, error)
	// DeleteChildAssignment removes a child's seat in the slot and
	// reports whether a row existed.
	DeleteChildAssignment(ctx context.Context, slotID, childID uint64) (bool, error)
}

// Store provides transactional and plain read access to the
// assignment tables.  InTx must run fn with isolation strong enough
// that two racing transactions for the last free seat cannot both
// commit; any error returned by fn rolls the transaction back and
// is propagated unchanged.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// ScheduleSlot is the non-transactional variant of Tx.ScheduleSlot
	// used by pure reads.
	ScheduleSlot(ctx context.Context, slotID uint64) (*model.ScheduleSlot, error)
	// AvailableChildren lists the children of the requesting user's
	// family whose family belongs to the slot's group and who do not
	// already occupy a seat in the slot.
	AvailableChildren(ctx context.Context, slotID, userID uint64) ([]model.Child, error)
}

// Authorizer answers the two access questions the guard delegates:
// may this user act on this child, and does this user's family
// belong to this group.
type Authorizer interface {
	UserCanAccessChild(ctx context.Context, userID, childID uint64) (bool, error)
	UserFamilyInGroup(ctx context.Context, userID, groupID uint64) (bool, error)
}

// Notifier receives successful assignments after commit.  Calls are
// fire-and-forget: implementations must never fail the request and
// should do their work (broadcast, queue publish) asynchronously.
type Notifier interface {
	ChildAssigned(ctx context.Context, detail model.ChildAssignmentDetail)
}

// AssignmentService is the seat-capacity assignment guard.  It
// serializes concurrent "add child to vehicle" requests against the
// same vehicle assignment through the store's transaction so that
// occupancy never exceeds the effective capacity, while unrelated
// assignments proceed concurrently.  The service itself is
// stateless; all coordination happens in the store.
type AssignmentService struct {
	store    Store
	authz    Authorizer
	past     *PastDateValidator
	notifier Notifier // may be nil; then no notifications are sent
}

// NewAssignmentService wires the guard with its collaborators.
// store and authz must be non-nil; notifier may be nil.
func NewAssignmentService(store Store, authz Authorizer, notifier Notifier) *AssignmentService {
	if store == nil || authz == nil {
		panic("nil dependency passed to NewAssignmentService")
	}
	return &AssignmentService{
		store:    store,
		authz:    authz,
		past:     &PastDateValidator{},
		notifier: notifier,
	}
}

// WithClock replaces the validator's clock.  Intended for tests.
func (s *AssignmentService) WithClock(now func() time.Time) *AssignmentService {
	s.past = &PastDateValidator{Now: now}
	return s
}

// AssignChildToScheduleSlot attaches childID to the given vehicle
// assignment within slotID on behalf of userID.  The capacity
// check and the insert run inside a single transaction, so two
// simultaneous calls racing for the last free seat end with exactly
// one success and one CapacityError.  Failure modes, in order of
// detection: ErrForbidden (child or group access), ErrSlotNotFound,
// *PastSlotError, ErrVehicleAssignmentNotFound, ErrAlreadyAssigned,
// *CapacityError.  No failure leaves partial state behind, and the
// guard never retries: a capacity conflict is final and transient
// transaction conflicts are the caller's concern.
func (s *AssignmentService) AssignChildToScheduleSlot(ctx context.Context, slotID, childID, assignmentID, userID uint64) (*model.ChildAssignmentDetail, error) {
	ok, err := s.authz.UserCanAccessChild(ctx, userID, childID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	var detail *model.ChildAssignmentDetail
	err = s.store.InTx(ctx, func(tx Tx) error {
		slot, err := tx.ScheduleSlot(ctx, slotID)
		if err != nil {
			return err
		}
		ok, err := s.authz.UserFamilyInGroup(ctx, userID, slot.GroupID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}
		if err := s.past.AssertNotPast(slot.StartsAt, slot.Timezone); err != nil {
			return err
		}

		// The row lock taken here is what makes the remainder of the
		// transaction safe: every competing assignment for the same
		// vehicle must pass this point one at a time.
		va, err := tx.VehicleAssignmentForUpdate(ctx, slotID, assignmentID)
		if err != nil {
			return err
		}

		// Duplicate guard before the capacity check so a repeated
		// request is reported as AlreadyAssigned, not CapacityExceeded.
		exists, err := tx.HasChildAssignment(ctx, assignmentID, childID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyAssigned
		}

		count, err := tx.CountChildAssignments(ctx, assignmentID)
		if err != nil {
			return err
		}
		if eff := va.EffectiveCapacity(); count >= eff {
			return &CapacityError{VehicleName: va.VehicleName, Current: count, Effective: eff}
		}

		rec := &model.ChildAssignment{
			ScheduleSlotID:      slotID,
			ChildID:             childID,
			VehicleAssignmentID: assignmentID,
		}
		if err := tx.InsertChildAssignment(ctx, rec); err != nil {
			return err
		}
		detail, err = tx.ChildAssignmentDetail(ctx, rec.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Notify only after the transaction committed.  The notifier is
	// fire-and-forget; it must not influence the outcome.
	if s.notifier != nil {
		s.notifier.ChildAssigned(ctx, *detail)
	}
	return detail, nil
}

// UnassignChildFromScheduleSlot frees the seat childID holds in
// slotID.  Like assignment it is rejected for past slots and for
// children outside the caller's family.  Returns ErrNotAssigned
// when the child holds no seat in the slot.
func (s *AssignmentService) UnassignChildFromScheduleSlot(ctx context.Context, slotID, childID, userID uint64) error {
	ok, err := s.authz.UserCanAccessChild(ctx, userID, childID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return s.store.InTx(ctx, func(tx Tx) error {
		slot, err := tx.ScheduleSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if err := s.past.AssertNotPast(slot.StartsAt, slot.Timezone); err != nil {
			return err
		}
		removed, err := tx.DeleteChildAssignment(ctx, slotID, childID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrNotAssigned
		}
		return nil
	})
}

// AvailableChildrenForScheduleSlot returns the caller's children who
// can still be assigned in the slot: members of the slot's group via
// their family, without a seat anywhere in the slot.  Purely a
// filtered read; no locking involved.
func (s *AssignmentService) AvailableChildrenForScheduleSlot(ctx context.Context, slotID, userID uint64) ([]model.Child, error) {
	slot, err := s.store.ScheduleSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	ok, err := s.authz.UserFamilyInGroup(ctx, userID, slot.GroupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return s.store.AvailableChildren(ctx, slotID, userID)
}
