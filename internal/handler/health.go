// Package handler contains the HTTP layer: request binding,
// validation and error-to-status mapping on top of the repositories
// and the assignment service.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health answers load balancer probes with a plain "ok".
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
