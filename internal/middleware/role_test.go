package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func roleCtx(role interface{}) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != nil {
		c.Set("role", role)
	}
	return c, rec
}

func TestRequireRoleAllows(t *testing.T) {
	mw := RequireRole("ADMIN")
	c, _ := roleCtx("ADMIN")
	called := false
	err := mw(func(echo.Context) error { called = true; return nil })(c)
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestRequireRoleRejectsOtherRole(t *testing.T) {
	mw := RequireRole("ADMIN")
	c, rec := roleCtx("PARENT")
	err := mw(func(echo.Context) error { t.Fatal("next must not run"); return nil })(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	mw := RequireRole("ADMIN", "PARENT")
	c, rec := roleCtx(nil)
	err := mw(func(echo.Context) error { t.Fatal("next must not run"); return nil })(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJWTAuthMissingHeader(t *testing.T) {
	mw := JWTAuth("secret")
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(func(echo.Context) error { t.Fatal("next must not run"); return nil })(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthGarbageToken(t *testing.T) {
	mw := JWTAuth("secret")
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(func(echo.Context) error { t.Fatal("next must not run"); return nil })(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
