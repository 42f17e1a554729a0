package router

import (
	"github.com/labstack/echo/v4"

	"github.com/carpoolio/carpool-api/internal/handler"
	"github.com/carpoolio/carpool-api/internal/middleware"
)

// RegisterParent registers the family-facing endpoints under /v1.
// Both roles may call them: coordinators are parents too, and every
// ownership rule is enforced through family membership inside the
// handlers and the assignment service.  The limiter and the response
// cache sit after JWTAuth so both key on the authenticated user, and
// an unauthenticated request is rejected before the cache can answer.
func RegisterParent(e *echo.Echo, f *handler.FamilyHandler, g *handler.GroupHandler, a *handler.AssignmentHandler, s *handler.SlotHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	grp := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("PARENT", "ADMIN"),
		limiter,
		cache,
	)

	// ---- Families, children, vehicles ----
	grp.POST("/families", f.CreateFamily)
	grp.GET("/my-family", f.MyFamily)
	grp.POST("/families/members", f.AddMember)
	grp.POST("/children", f.CreateChild)
	grp.GET("/my-children", f.MyChildren)
	grp.POST("/vehicles", f.CreateVehicle)
	grp.GET("/my-vehicles", f.MyVehicles)

	// ---- Groups ----
	grp.POST("/groups/:id/join", g.JoinGroup)
	grp.GET("/my-groups", g.MyGroups)
	grp.GET("/groups/:id/schedule", g.GroupSchedule)

	// ---- Seat assignments ----
	grp.POST("/schedule-slots/:id/assignments", a.AssignChild)
	grp.DELETE("/schedule-slots/:id/assignments/:childId", a.UnassignChild)
	grp.GET("/schedule-slots/:id/available-children", a.AvailableChildren)
	grp.GET("/schedule-slots/:id/roster", s.SlotRoster)
	grp.GET("/my-assignments", a.MyAssignments)
}
