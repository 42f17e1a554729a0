package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carpoolio/carpool-api/internal/repository"
	"github.com/carpoolio/carpool-api/internal/service"
)

// AssignmentHandler exposes the seat-capacity assignment guard over
// HTTP: assigning and unassigning children, the available-children
// read and a parent's upcoming assignments.
type AssignmentHandler struct {
	Assignments *service.AssignmentService
	Slots       *repository.ScheduleSlotRepo
}

func NewAssignmentHandler(s *service.AssignmentService, slots *repository.ScheduleSlotRepo) *AssignmentHandler {
	if s == nil || slots == nil {
		panic("nil dependency passed to NewAssignmentHandler")
	}
	return &AssignmentHandler{Assignments: s, Slots: slots}
}

type assignChildReq struct {
	ChildID             uint64 `json:"child_id"`
	VehicleAssignmentID uint64 `json:"vehicle_assignment_id"`
}

// AssignChild claims one seat for a child.  The service decides the
// outcome; this handler only maps its errors onto HTTP statuses:
// 404 for missing slot or vehicle assignment, 403 for foreign
// children or groups, 409 for past slots, duplicates and full
// vehicles.  Capacity conflicts keep the service's message verbatim
// because clients display it as-is.
func (h *AssignmentHandler) AssignChild(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var req assignChildReq
	if err := c.Bind(&req); err != nil || req.ChildID == 0 || req.VehicleAssignmentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "child_id and vehicle_assignment_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	detail, err := h.Assignments.AssignChildToScheduleSlot(ctx, slotID, req.ChildID, req.VehicleAssignmentID, uid)
	if err != nil {
		return assignmentError(c, err)
	}
	return c.JSON(http.StatusCreated, detail)
}

// UnassignChild frees the seat a child holds in the slot.
func (h *AssignmentHandler) UnassignChild(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	childID, ok := pathID(c, "childId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid child id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Assignments.UnassignChildFromScheduleSlot(ctx, slotID, childID, uid); err != nil {
		return assignmentError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AvailableChildren lists the caller's children still assignable in
// the slot.
func (h *AssignmentHandler) AvailableChildren(c echo.Context) error {
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

	children, err := h.Assignments.AvailableChildrenForScheduleSlot(ctx, slotID, uid)
	if err != nil {
		return assignmentError(c, err)
	}
	return c.JSON(http.StatusOK, children)
}

// MyAssignments lists the upcoming seats of the caller's family
// children, soonest first.
func (h *AssignmentHandler) MyAssignments(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Slots.AssignmentsOfUser(ctx, uid, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, out)
}

// assignmentError maps the service error vocabulary onto HTTP.
func assignmentError(c echo.Context, err error) error {
	var capErr *service.CapacityError
	var pastErr *service.PastSlotError
	switch {
	case errors.Is(err, service.ErrSlotNotFound),
		errors.Is(err, service.ErrVehicleAssignmentNotFound),
		errors.Is(err, service.ErrNotAssigned):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrAlreadyAssigned):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.As(err, &capErr):
		return c.JSON(http.StatusConflict, echo.Map{"error": capErr.Error()})
	case errors.As(err, &pastErr):
		return c.JSON(http.StatusConflict, echo.Map{"error": pastErr.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
