package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carpoolio/carpool-api/internal/model"
	"github.com/carpoolio/carpool-api/internal/repository"
)

// GroupHandler serves carpool group endpoints: creation (ADMIN),
// joining, listing and the group schedule.
type GroupHandler struct {
	Groups   *repository.GroupRepo
	Families *repository.FamilyRepo
	Slots    *repository.ScheduleSlotRepo
	Access   *repository.AccessRepo
}

func NewGroupHandler(g *repository.GroupRepo, f *repository.FamilyRepo, s *repository.ScheduleSlotRepo, a *repository.AccessRepo) *GroupHandler {
	if g == nil || f == nil || s == nil || a == nil {
		panic("nil repository passed to NewGroupHandler")
	}
	return &GroupHandler{Groups: g, Families: f, Slots: s, Access: a}
}

type createGroupReq struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// CreateGroup creates a carpool group.  The timezone must be a
// valid IANA name; it anchors all past-slot decisions for the
// group's schedule.
func (h *GroupHandler) CreateGroup(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createGroupReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid timezone"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	g := &model.Group{Name: strings.TrimSpace(req.Name), Timezone: tz, CreatedBy: uid}
	if err := h.Groups.Create(ctx, g); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create group failed"})
	}
	return c.JSON(http.StatusCreated, g)
}

// JoinGroup adds the caller's family to a group.
func (h *GroupHandler) JoinGroup(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Groups.GetByID(ctx, groupID); err != nil {
		if err == repository.ErrGroupNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "group not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	familyID, err := h.Families.FamilyOfUser(ctx, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no family"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Groups.JoinFamily(ctx, groupID, familyID); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "family already in group"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "join failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// MyGroups lists the groups the caller's family belongs to.
func (h *GroupHandler) MyGroups(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	groups, err := h.Groups.GroupsOfUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, groups)
}

// GroupSchedule lists the group's upcoming slots with occupancy
// counts.  Members only.
func (h *GroupHandler) GroupSchedule(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	groupID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	member, err := h.Access.UserFamilyInGroup(ctx, uid, groupID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	// Coordinators see their schedule even without a family.
	if !member {
		coord, err := h.Groups.IsCoordinator(ctx, groupID, uid)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if !coord {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}

	slots, err := h.Slots.ListSlotsByGroup(ctx, groupID, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, slots)
}
