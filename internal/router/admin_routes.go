package router

import (
	"github.com/labstack/echo/v4"

	"github.com/carpoolio/carpool-api/internal/handler"
	"github.com/carpoolio/carpool-api/internal/middleware"
)

// RegisterAdmin registers the coordinator endpoints under /v1.  All
// routes require the ADMIN role; on top of that each handler checks
// the caller coordinates the affected group.  No response cache
// here: every admin route mutates state.
func RegisterAdmin(e *echo.Echo, g *handler.GroupHandler, s *handler.SlotHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	grp := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
		limiter,
	)

	// ---- Groups ----
	grp.POST("/groups", g.CreateGroup)

	// ---- Schedule slots ----
	grp.POST("/schedule-slots", s.CreateSlot)
	grp.DELETE("/schedule-slots/:id", s.DeleteSlot)

	// ---- Vehicle assignments ----
	grp.POST("/schedule-slots/:id/vehicles", s.CreateVehicleAssignment)
	grp.PATCH("/vehicle-assignments/:id", s.UpdateSeatOverride)
	grp.DELETE("/vehicle-assignments/:id", s.DeleteVehicleAssignment)
}
