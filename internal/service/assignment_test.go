package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carpoolio/carpool-api/internal/model"
	"github.com/carpoolio/carpool-api/internal/repository/memory"
	"github.com/carpoolio/carpool-api/internal/service"
)

// fakeNotifier records the details it receives so tests can assert
// the notifier fires exactly once per committed assignment.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []model.ChildAssignmentDetail
}

func (f *fakeNotifier) ChildAssigned(_ context.Context, d model.ChildAssignmentDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, d)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fixture is one seeded parent with a family in a group, a future
// slot and one vehicle assignment.
type fixture struct {
	store  *memory.Store
	svc    *service.AssignmentService
	notif  *fakeNotifier
	userID uint64
	family uint64
	group  uint64
	slot   uint64
	va     uint64
}

func newFixture(t *testing.T, capacity int, override *int) *fixture {
	t.Helper()
	st := memory.NewStore()
	userID := uint64(100)
	fam := st.SeedFamily(userID)
	grp := st.SeedGroup("Europe/Berlin", fam)
	startsAt := time.Now().UTC().Add(24 * time.Hour)
	slot := st.SeedSlot(grp, startsAt)
	va := st.SeedVehicleAssignment(slot, "Blue Van", capacity, override, nil)
	notif := &fakeNotifier{}
	svc := service.NewAssignmentService(st, st, notif)
	return &fixture{store: st, svc: svc, notif: notif, userID: userID, family: fam, group: grp, slot: slot, va: va}
}

func (f *fixture) seedChildren(n int) []uint64 {
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, f.store.SeedChild(f.family, fmt.Sprintf("Child %d", i+1)))
	}
	return ids
}

func TestAssignChildReturnsJoinedDetail(t *testing.T) {
	f := newFixture(t, 4, nil)
	child := f.store.SeedChild(f.family, "Ada")

	detail, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, child, f.va, f.userID)
	assert.NoError(t, err)
	assert.Equal(t, child, detail.ChildID)
	assert.Equal(t, f.slot, detail.ScheduleSlotID)
	assert.Equal(t, f.va, detail.VehicleAssignmentID)
	assert.Equal(t, "Ada", detail.ChildName)
	assert.Equal(t, "Blue Van", detail.VehicleName)
	assert.NotZero(t, detail.ID)
	assert.Equal(t, 1, f.store.Count(f.va))
	assert.Equal(t, 1, f.notif.count())
}

func TestVehicleFillsToNominalCapacity(t *testing.T) {
	f := newFixture(t, 4, nil)
	children := f.seedChildren(5)

	for _, c := range children[:4] {
		_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, c, f.va, f.userID)
		assert.NoError(t, err)
	}

	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, children[4], f.va, f.userID)
	var capErr *service.CapacityError
	assert.ErrorAs(t, err, &capErr)
	assert.Equal(t, "Vehicle Blue Van is at full capacity (4/4)", err.Error())
	assert.Equal(t, 4, f.store.Count(f.va))
	assert.Equal(t, 4, f.notif.count())
}

func TestSeatOverrideRaisesCapacity(t *testing.T) {
	override := 6
	f := newFixture(t, 4, &override)
	children := f.seedChildren(7)

	for i, c := range children[:6] {
		_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, c, f.va, f.userID)
		assert.NoError(t, err, "seat %d should still be free", i+1)
	}

	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, children[6], f.va, f.userID)
	assert.EqualError(t, err, "Vehicle Blue Van is at full capacity (6/6)")
	assert.Equal(t, 6, f.store.Count(f.va))
}

func TestSeatOverrideLowersCapacity(t *testing.T) {
	override := 2
	f := newFixture(t, 5, &override)
	children := f.seedChildren(3)

	for _, c := range children[:2] {
		_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, c, f.va, f.userID)
		assert.NoError(t, err)
	}

	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, children[2], f.va, f.userID)
	assert.EqualError(t, err, "Vehicle Blue Van is at full capacity (2/2)")
}

func TestDuplicateAssignmentReported(t *testing.T) {
	f := newFixture(t, 4, nil)
	child := f.store.SeedChild(f.family, "Ada")

	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, child, f.va, f.userID)
	assert.NoError(t, err)

	_, err = f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, child, f.va, f.userID)
	assert.ErrorIs(t, err, service.ErrAlreadyAssigned)
	assert.Equal(t, 1, f.store.Count(f.va))
	assert.Equal(t, 1, f.notif.count())
}

func TestDuplicateWinsOverCapacityOnFullVehicle(t *testing.T) {
	// A repeated request against a full vehicle must report the
	// duplicate, not the capacity conflict.
	f := newFixture(t, 1, nil)
	child := f.store.SeedChild(f.family, "Ada")

	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, child, f.va, f.userID)
	assert.NoError(t, err)

	_, err = f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, child, f.va, f.userID)
	assert.ErrorIs(t, err, service.ErrAlreadyAssigned)
}

func TestAssignToPastSlotRejected(t *testing.T) {
	f := newFixture(t, 4, nil)
	child := f.store.SeedChild(f.family, "Ada")
	f.svc.WithClock(func() time.Time { return time.Now().UTC().Add(48 * time.Hour) })

	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, child, f.va, f.userID)
	var pastErr *service.PastSlotError
	assert.ErrorAs(t, err, &pastErr)
	assert.Equal(t, 0, f.store.Count(f.va))
	assert.Equal(t, 0, f.notif.count())
}

func TestAssignUnknownSlot(t *testing.T) {
	f := newFixture(t, 4, nil)
	child := f.store.SeedChild(f.family, "Ada")

	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), 9999, child, f.va, f.userID)
	assert.ErrorIs(t, err, service.ErrSlotNotFound)
}

func TestAssignVehicleAssignmentOfOtherSlot(t *testing.T) {
	f := newFixture(t, 4, nil)
	child := f.store.SeedChild(f.family, "Ada")
	otherSlot := f.store.SeedSlot(f.group, time.Now().UTC().Add(24*time.Hour))
	otherVA := f.store.SeedVehicleAssignment(otherSlot, "Red Car", 4, nil, nil)

	// The vehicle assignment exists but belongs to a different slot.
	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, child, otherVA, f.userID)
	assert.ErrorIs(t, err, service.ErrVehicleAssignmentNotFound)
}

func TestAssignForeignChildForbidden(t *testing.T) {
	f := newFixture(t, 4, nil)
	otherFam := f.store.SeedFamily(200)
	foreign := f.store.SeedChild(otherFam, "Eve")

	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, foreign, f.va, f.userID)
	assert.ErrorIs(t, err, service.ErrForbidden)
	assert.Equal(t, 0, f.store.Count(f.va))
}

func TestAssignOutsideGroupForbidden(t *testing.T) {
	st := memory.NewStore()
	fam := st.SeedFamily(100)
	child := st.SeedChild(fam, "Ada")
	// The slot's group has no member families.
	grp := st.SeedGroup("Europe/Berlin")
	slot := st.SeedSlot(grp, time.Now().UTC().Add(24*time.Hour))
	va := st.SeedVehicleAssignment(slot, "Blue Van", 4, nil, nil)
	svc := service.NewAssignmentService(st, st, nil)

	_, err := svc.AssignChildToScheduleSlot(context.Background(), slot, child, va, 100)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestConcurrentRaceForLastSeat(t *testing.T) {
	f := newFixture(t, 3, nil)
	children := f.seedChildren(4)

	// Occupy all but one seat.
	for _, c := range children[:2] {
		_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, c, f.va, f.userID)
		assert.NoError(t, err)
	}

	// Two distinct children race for the last seat.
	start := make(chan struct{})
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, c := range children[2:] {
		wg.Add(1)
		go func(childID uint64) {
			defer wg.Done()
			<-start
			_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, childID, f.va, f.userID)
			results <- err
		}(c)
	}
	close(start)
	wg.Wait()
	close(results)

	var successes, capacityFailures int
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var capErr *service.CapacityError
			if assert.ErrorAs(t, err, &capErr) {
				capacityFailures++
				assert.Equal(t, "Vehicle Blue Van is at full capacity (3/3)", err.Error())
			}
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, capacityFailures)
	assert.Equal(t, 3, f.store.Count(f.va))
}

func TestUnassignFreesSeat(t *testing.T) {
	f := newFixture(t, 1, nil)
	children := f.seedChildren(2)

	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, children[0], f.va, f.userID)
	assert.NoError(t, err)

	err = f.svc.UnassignChildFromScheduleSlot(context.Background(), f.slot, children[0], f.userID)
	assert.NoError(t, err)
	assert.Equal(t, 0, f.store.Count(f.va))

	// The freed seat is immediately reusable.
	_, err = f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, children[1], f.va, f.userID)
	assert.NoError(t, err)
}

func TestUnassignWithoutSeat(t *testing.T) {
	f := newFixture(t, 4, nil)
	child := f.store.SeedChild(f.family, "Ada")

	err := f.svc.UnassignChildFromScheduleSlot(context.Background(), f.slot, child, f.userID)
	assert.ErrorIs(t, err, service.ErrNotAssigned)
}

func TestUnassignPastSlotRejected(t *testing.T) {
	f := newFixture(t, 4, nil)
	child := f.store.SeedChild(f.family, "Ada")
	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, child, f.va, f.userID)
	assert.NoError(t, err)

	f.svc.WithClock(func() time.Time { return time.Now().UTC().Add(48 * time.Hour) })
	err = f.svc.UnassignChildFromScheduleSlot(context.Background(), f.slot, child, f.userID)
	var pastErr *service.PastSlotError
	assert.ErrorAs(t, err, &pastErr)
	assert.Equal(t, 1, f.store.Count(f.va))
}

func TestAvailableChildrenExcludesAssigned(t *testing.T) {
	f := newFixture(t, 4, nil)
	children := f.seedChildren(3)

	_, err := f.svc.AssignChildToScheduleSlot(context.Background(), f.slot, children[0], f.va, f.userID)
	assert.NoError(t, err)

	avail, err := f.svc.AvailableChildrenForScheduleSlot(context.Background(), f.slot, f.userID)
	assert.NoError(t, err)
	got := make(map[uint64]bool)
	for _, c := range avail {
		got[c.ID] = true
	}
	assert.False(t, got[children[0]])
	assert.True(t, got[children[1]])
	assert.True(t, got[children[2]])
}

func TestAvailableChildrenOutsideGroup(t *testing.T) {
	f := newFixture(t, 4, nil)
	outsider := uint64(300)
	f.store.SeedFamily(outsider)

	_, err := f.svc.AvailableChildrenForScheduleSlot(context.Background(), f.slot, outsider)
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestNilNotifierIsAllowed(t *testing.T) {
	f := newFixture(t, 4, nil)
	child := f.store.SeedChild(f.family, "Ada")
	svc := service.NewAssignmentService(f.store, f.store, nil)

	_, err := svc.AssignChildToScheduleSlot(context.Background(), f.slot, child, f.va, f.userID)
	assert.NoError(t, err)
}

func TestNilStorePanics(t *testing.T) {
	assert.Panics(t, func() { service.NewAssignmentService(nil, memory.NewStore(), nil) })
}

func TestCapacityErrorIsNotASentinel(t *testing.T) {
	err := error(&service.CapacityError{VehicleName: "Van", Current: 4, Effective: 4})
	assert.False(t, errors.Is(err, service.ErrAlreadyAssigned))
	assert.Equal(t, "Vehicle Van is at full capacity (4/4)", err.Error())
}
