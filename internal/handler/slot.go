package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carpoolio/carpool-api/internal/model"
	"github.com/carpoolio/carpool-api/internal/repository"
)

// SlotHandler serves the coordinator-side schedule management:
// slots, vehicle assignments, seat overrides and rosters.  All
// mutating routes are behind the ADMIN role; on top of that every
// operation verifies the caller coordinates the group in question.
type SlotHandler struct {
	Slots    *repository.ScheduleSlotRepo
	Groups   *repository.GroupRepo
	Vehicles *repository.VehicleRepo
	Access   *repository.AccessRepo
}

func NewSlotHandler(s *repository.ScheduleSlotRepo, g *repository.GroupRepo, v *repository.VehicleRepo, a *repository.AccessRepo) *SlotHandler {
	if s == nil || g == nil || v == nil || a == nil {
		panic("nil repository passed to NewSlotHandler")
	}
	return &SlotHandler{Slots: s, Groups: g, Vehicles: v, Access: a}
}

// requireCoordinator loads the group and checks the caller created
// it.  On failure the response has already been written; the caller
// must return err as-is.
func (h *SlotHandler) requireCoordinator(ctx context.Context, c echo.Context, groupID, uid uint64) (ok bool, err error) {
	if _, err := h.Groups.GetByID(ctx, groupID); err != nil {
		if err == repository.ErrGroupNotFound {
			return false, c.JSON(http.StatusNotFound, echo.Map{"error": "group not found"})
		}
		return false, c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	coord, err := h.Groups.IsCoordinator(ctx, groupID, uid)
	if err != nil {
		return false, c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !coord {
		return false, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return true, nil
}

type createSlotReq struct {
	GroupID  uint64    `json:"group_id"`
	StartsAt time.Time `json:"starts_at"` // RFC 3339
}

// CreateSlot adds a schedule slot to a group.  The instant must lie
// in the future; it is stored in UTC.
func (h *SlotHandler) CreateSlot(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createSlotReq
	if err := c.Bind(&req); err != nil || req.GroupID == 0 || req.StartsAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "group_id and starts_at required"})
	}
	if !req.StartsAt.After(time.Now()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be in the future"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if ok, err := h.requireCoordinator(ctx, c, req.GroupID, uid); !ok {
		return err
	}
	slot := &model.ScheduleSlot{GroupID: req.GroupID, StartsAt: req.StartsAt.UTC()}
	if err := h.Slots.CreateSlot(ctx, slot); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create slot failed"})
	}
	return c.JSON(http.StatusCreated, slot)
}

// DeleteSlot removes a slot with everything attached to it.
func (h *SlotHandler) DeleteSlot(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	slot, err := h.Slots.GetSlot(ctx, slotID)
	if err != nil {
		if err == repository.ErrSlotNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if ok, err := h.requireCoordinator(ctx, c, slot.GroupID, uid); !ok {
		return err
	}
	if err := h.Slots.DeleteSlot(ctx, slotID); err != nil {
		if err == repository.ErrSlotNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type createVehicleAssignmentReq struct {
	VehicleID    uint64  `json:"vehicle_id"`
	DriverID     *uint64 `json:"driver_id"`
	SeatOverride *int    `json:"seat_override"`
}

// CreateVehicleAssignment attaches a vehicle to a slot, optionally
// with a driver and a per-slot seat override.
func (h *SlotHandler) CreateVehicleAssignment(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var req createVehicleAssignmentReq
	if err := c.Bind(&req); err != nil || req.VehicleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id required"})
	}
	if req.SeatOverride != nil && (*req.SeatOverride < 0 || *req.SeatOverride > 50) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_override must be between 0 and 50"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	slot, err := h.Slots.GetSlot(ctx, slotID)
	if err != nil {
		if err == repository.ErrSlotNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if ok, err := h.requireCoordinator(ctx, c, slot.GroupID, uid); !ok {
		return err
	}
	if _, err := h.Vehicles.GetByID(ctx, req.VehicleID); err != nil {
		if err == repository.ErrVehicleNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	va := &model.VehicleAssignment{
		ScheduleSlotID: slotID,
		VehicleID:      req.VehicleID,
		DriverID:       req.DriverID,
		SeatOverride:   req.SeatOverride,
	}
	if err := h.Slots.CreateVehicleAssignment(ctx, va); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create assignment failed"})
	}
	return c.JSON(http.StatusCreated, va)
}

type seatOverrideReq struct {
	SeatOverride *int `json:"seat_override"` // null clears the override
}

// UpdateSeatOverride sets or clears the per-slot capacity override
// of a vehicle assignment.  Lowering it below current occupancy is
// allowed; it only blocks further assignments.
func (h *SlotHandler) UpdateSeatOverride(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	vaID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}
	var req seatOverrideReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SeatOverride != nil && (*req.SeatOverride < 0 || *req.SeatOverride > 50) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_override must be between 0 and 50"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	va, err := h.Slots.GetVehicleAssignment(ctx, vaID)
	if err != nil {
		if err == repository.ErrVehicleAssignmentNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle assignment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	slot, err := h.Slots.GetSlot(ctx, va.ScheduleSlotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if ok, err := h.requireCoordinator(ctx, c, slot.GroupID, uid); !ok {
		return err
	}
	if err := h.Slots.UpdateSeatOverride(ctx, vaID, req.SeatOverride); err != nil {
		if err == repository.ErrVehicleAssignmentNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle assignment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	got, err := h.Slots.GetVehicleAssignment(ctx, vaID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, got)
}

// DeleteVehicleAssignment detaches a vehicle from its slot.  When
// it was the slot's last vehicle the empty slot is removed too.
func (h *SlotHandler) DeleteVehicleAssignment(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	vaID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	va, err := h.Slots.GetVehicleAssignment(ctx, vaID)
	if err != nil {
		if err == repository.ErrVehicleAssignmentNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle assignment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	slot, err := h.Slots.GetSlot(ctx, va.ScheduleSlotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if ok, err := h.requireCoordinator(ctx, c, slot.GroupID, uid); !ok {
		return err
	}
	if err := h.Slots.DeleteVehicleAssignment(ctx, vaID); err != nil {
		if err == repository.ErrVehicleAssignmentNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle assignment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// SlotRoster shows the slot's vehicles with occupancy and rider
// names.  Open to group members and the coordinator.
func (h *SlotHandler) SlotRoster(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	slot, err := h.Slots.GetSlot(ctx, slotID)
	if err != nil {
		if err == repository.ErrSlotNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	member, err := h.Access.UserFamilyInGroup(ctx, uid, slot.GroupID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !member {
		coord, err := h.Groups.IsCoordinator(ctx, slot.GroupID, uid)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if !coord {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
	roster, err := h.Slots.SlotRoster(ctx, slotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, roster)
}
