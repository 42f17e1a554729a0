// Package memory provides an in-memory implementation of the
// assignment guard's Store and Authorizer contracts.  It backs
// service and handler tests: directory data (groups, families,
// children, slots, vehicle assignments) is seeded up front and then
// treated as immutable, while child assignments, the only state
// the guard mutates, are guarded by a mutex held for the whole
// transaction.  Holding the lock across InTx gives the same
// observable behaviour as a serializable database transaction, so
// the guard's race properties can be exercised with plain
// goroutines.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/carpoolio/carpool-api/internal/model"
	"github.com/carpoolio/carpool-api/internal/service"
)

// Store keeps the whole data set in maps.  The zero value is not
// usable; call NewStore.
type Store struct {
	mu     sync.Mutex // guards childAssignments and nextAssignID
	nextID uint64     // seed-time id allocator (single-goroutine)

	slots              map[uint64]model.ScheduleSlot
	vehicleAssignments map[uint64]model.VehicleAssignment
	children           map[uint64]model.Child
	groups             map[uint64]model.Group
	memberships        map[uint64]uint64          // user id -> family id
	groupFamilies      map[uint64]map[uint64]bool // group id -> member family ids

	nextAssignID     uint64
	childAssignments map[uint64]model.ChildAssignment
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		slots:              make(map[uint64]model.ScheduleSlot),
		vehicleAssignments: make(map[uint64]model.VehicleAssignment),
		children:           make(map[uint64]model.Child),
		groups:             make(map[uint64]model.Group),
		memberships:        make(map[uint64]uint64),
		groupFamilies:      make(map[uint64]map[uint64]bool),
		childAssignments:   make(map[uint64]model.ChildAssignment),
	}
}

// ---- seed helpers (call before starting concurrent work) ----

func (s *Store) nextSeedID() uint64 {
	s.nextID++
	return s.nextID
}

// SeedFamily registers a family with the given member users and
// returns its id.
func (s *Store) SeedFamily(userIDs ...uint64) uint64 {
	id := s.nextSeedID()
	for _, uid := range userIDs {
		s.memberships[uid] = id
	}
	return id
}

// SeedGroup registers a group with a timezone and member families
// and returns its id.
func (s *Store) SeedGroup(timezone string, familyIDs ...uint64) uint64 {
	id := s.nextSeedID()
	s.groups[id] = model.Group{ID: id, Timezone: timezone}
	set := make(map[uint64]bool, len(familyIDs))
	for _, fid := range familyIDs {
		set[fid] = true
	}
	s.groupFamilies[id] = set
	return id
}

// SeedChild registers a child in a family and returns its id.
func (s *Store) SeedChild(familyID uint64, name string) uint64 {
	id := s.nextSeedID()
	s.children[id] = model.Child{ID: id, FamilyID: familyID, Name: name}
	return id
}

// SeedSlot registers a schedule slot and returns its id.  The
// group's timezone is denormalized onto the slot like the SQL join
// does.
func (s *Store) SeedSlot(groupID uint64, startsAt time.Time) uint64 {
	id := s.nextSeedID()
	s.slots[id] = model.ScheduleSlot{
		ID:       id,
		GroupID:  groupID,
		StartsAt: startsAt.UTC(),
		Timezone: s.groups[groupID].Timezone,
	}
	return id
}

// SeedVehicleAssignment registers a vehicle assignment and returns
// its id.  override may be nil.
func (s *Store) SeedVehicleAssignment(slotID uint64, vehicleName string, capacity int, override *int, driverName *string) uint64 {
	id := s.nextSeedID()
	s.vehicleAssignments[id] = model.VehicleAssignment{
		ID:             id,
		ScheduleSlotID: slotID,
		VehicleName:    vehicleName,
		Capacity:       capacity,
		SeatOverride:   override,
		DriverName:     driverName,
	}
	return id
}

// ---- service.Authorizer ----
// Directory data is immutable once seeded, so these reads take no
// lock and remain callable from inside an open transaction.

func (s *Store) UserCanAccessChild(_ context.Context, userID, childID uint64) (bool, error) {
	c, ok := s.children[childID]
	if !ok {
		return false, nil
	}
	return s.memberships[userID] == c.FamilyID, nil
}

func (s *Store) UserFamilyInGroup(_ context.Context, userID, groupID uint64) (bool, error) {
	fid, ok := s.memberships[userID]
	if !ok {
		return false, nil
	}
	return s.groupFamilies[groupID][fid], nil
}

// ---- service.Store ----

// InTx holds the store lock for the duration of fn, which makes the
// whole transaction appear atomic to every other caller.  On error
// the assignment table is restored to its snapshot, mirroring a
// rollback.
func (s *Store) InTx(_ context.Context, fn func(tx service.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[uint64]model.ChildAssignment, len(s.childAssignments))
	for k, v := range s.childAssignments {
		snapshot[k] = v
	}
	snapID := s.nextAssignID
	if err := fn(&memTx{s: s}); err != nil {
		s.childAssignments = snapshot
		s.nextAssignID = snapID
		return err
	}
	return nil
}

func (s *Store) ScheduleSlot(_ context.Context, slotID uint64) (*model.ScheduleSlot, error) {
	slot, ok := s.slots[slotID]
	if !ok {
		return nil, service.ErrSlotNotFound
	}
	return &slot, nil
}

func (s *Store) AvailableChildren(_ context.Context, slotID, userID uint64) ([]model.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return nil, service.ErrSlotNotFound
	}
	fid, ok := s.memberships[userID]
	if !ok || !s.groupFamilies[slot.GroupID][fid] {
		return []model.Child{}, nil
	}
	taken := make(map[uint64]bool)
	for _, ca := range s.childAssignments {
		if ca.ScheduleSlotID == slotID {
			taken[ca.ChildID] = true
		}
	}
	out := make([]model.Child, 0)
	for _, c := range s.children {
		if c.FamilyID == fid && !taken[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

// memTx operates on the store with the lock already held by InTx.
type memTx struct {
	s *Store
}

func (t *memTx) ScheduleSlot(_ context.Context, slotID uint64) (*model.ScheduleSlot, error) {
	slot, ok := t.s.slots[slotID]
	if !ok {
		return nil, service.ErrSlotNotFound
	}
	return &slot, nil
}

func (t *memTx) VehicleAssignmentForUpdate(_ context.Context, slotID, assignmentID uint64) (*model.VehicleAssignment, error) {
	va, ok := t.s.vehicleAssignments[assignmentID]
	if !ok || va.ScheduleSlotID != slotID {
		return nil, service.ErrVehicleAssignmentNotFound
	}
	return &va, nil
}

func (t *memTx) HasChildAssignment(_ context.Context, assignmentID, childID uint64) (bool, error) {
	for _, ca := range t.s.childAssignments {
		if ca.VehicleAssignmentID == assignmentID && ca.ChildID == childID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CountChildAssignments(_ context.Context, assignmentID uint64) (int, error) {
	n := 0
	for _, ca := range t.s.childAssignments {
		if ca.VehicleAssignmentID == assignmentID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertChildAssignment(_ context.Context, rec *model.ChildAssignment) error {
	t.s.nextAssignID++
	rec.ID = t.s.nextAssignID
	rec.CreatedAt = time.Now().UTC()
	t.s.childAssignments[rec.ID] = *rec
	return nil
}

func (t *memTx) ChildAssignmentDetail(_ context.Context, assignmentID uint64) (*model.ChildAssignmentDetail, error) {
	ca, ok := t.s.childAssignments[assignmentID]
	if !ok {
		return nil, service.ErrNotAssigned
	}
	va := t.s.vehicleAssignments[ca.VehicleAssignmentID]
	return &model.ChildAssignmentDetail{
		ChildAssignment: ca,
		ChildName:       t.s.children[ca.ChildID].Name,
		VehicleName:     va.VehicleName,
		DriverName:      va.DriverName,
	}, nil
}

func (t *memTx) DeleteChildAssignment(_ context.Context, slotID, childID uint64) (bool, error) {
	for id, ca := range t.s.childAssignments {
		if ca.ScheduleSlotID == slotID && ca.ChildID == childID {
			delete(t.s.childAssignments, id)
			return true, nil
		}
	}
	return false, nil
}

// Count reports the stored occupancy of a vehicle assignment.
// Test helper.
func (s *Store) Count(assignmentID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ca := range s.childAssignments {
		if ca.VehicleAssignmentID == assignmentID {
			n++
		}
	}
	return n
}
