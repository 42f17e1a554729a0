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

// FamilyHandler serves family, child and vehicle endpoints.  Every
// route here requires authentication; ownership is checked through
// family membership.
type FamilyHandler struct {
	Families *repository.FamilyRepo
	Vehicles *repository.VehicleRepo
}

func NewFamilyHandler(f *repository.FamilyRepo, v *repository.VehicleRepo) *FamilyHandler {
	if f == nil || v == nil {
		panic("nil repository passed to NewFamilyHandler")
	}
	return &FamilyHandler{Families: f, Vehicles: v}
}

type createFamilyReq struct {
	Name string `json:"name"`
}

// CreateFamily creates a family with the caller as first member.
// A user can belong to only one family.
func (h *FamilyHandler) CreateFamily(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createFamilyReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Families.FamilyOfUser(ctx, uid); err == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "user already belongs to a family"})
	} else if err != sql.ErrNoRows {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	f := &model.Family{Name: strings.TrimSpace(req.Name)}
	if err := h.Families.Create(ctx, f, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create family failed"})
	}
	return c.JSON(http.StatusCreated, f)
}

// MyFamily returns the caller's family.
func (h *FamilyHandler) MyFamily(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	familyID, err := h.Families.FamilyOfUser(ctx, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no family"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	f, err := h.Families.GetByID(ctx, familyID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load family failed"})
	}
	return c.JSON(http.StatusOK, f)
}

type addMemberReq struct {
	UserID uint64 `json:"user_id"`
}

// AddMember attaches another user to the caller's family.
func (h *FamilyHandler) AddMember(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req addMemberReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	familyID, err := h.Families.FamilyOfUser(ctx, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no family"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Families.AddMember(ctx, familyID, req.UserID); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "user already belongs to a family"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "add member failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type createChildReq struct {
	Name string `json:"name"`
}

// CreateChild adds a child to the caller's family.
func (h *FamilyHandler) CreateChild(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createChildReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	familyID, err := h.Families.FamilyOfUser(ctx, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no family"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	child := &model.Child{FamilyID: familyID, Name: strings.TrimSpace(req.Name)}
	if err := h.Families.CreateChild(ctx, child); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create child failed"})
	}
	return c.JSON(http.StatusCreated, child)
}

// MyChildren lists the children of the caller's family.
func (h *FamilyHandler) MyChildren(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	children, err := h.Families.ChildrenOfUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, children)
}

type createVehicleReq struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// CreateVehicle registers a vehicle for the caller's family.
// Capacity counts passenger seats and must be positive.
func (h *FamilyHandler) CreateVehicle(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createVehicleReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	if req.Capacity < 1 || req.Capacity > 50 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be between 1 and 50"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	familyID, err := h.Families.FamilyOfUser(ctx, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no family"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	v := &model.Vehicle{FamilyID: familyID, Name: strings.TrimSpace(req.Name), Capacity: req.Capacity}
	if err := h.Vehicles.Create(ctx, v); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create vehicle failed"})
	}
	return c.JSON(http.StatusCreated, v)
}

// MyVehicles lists the caller's family vehicles.
func (h *FamilyHandler) MyVehicles(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	vehicles, err := h.Vehicles.VehiclesOfUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, vehicles)
}
