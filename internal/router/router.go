// Package router registers the API routes onto an Echo instance and
// binds the JWT and role middleware to the right groups.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/carpoolio/carpool-api/internal/handler"
	"github.com/carpoolio/carpool-api/internal/middleware"
)

// RegisterRoutes registers the unauthenticated endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints.  Register, login,
// refresh and logout are open (rate limited per IP, since nobody is
// authenticated yet); /v1/me sits behind the JWT, with the limiter
// after it so user-based bucket keys see the real user id.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout works with either a bearer token or a refresh token in
	// the body, so it stays outside the JWT middleware.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("PARENT", "ADMIN"))
	auth.Use(limiter)
	auth.GET("/me", a.Me)
}
