package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/carpoolio/carpool-api/internal/config"
)

const testSecret = "middleware-test-secret"

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func bearerFor(t *testing.T, userID uint64) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": "PARENT",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return "Bearer " + signed
}

func cacheTestConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "test:cache",
		MaxBodyBytes: 1 << 20,
	}
}

// newCachedAPI wires a protected GET route the way the routers do:
// JWT first, then the response cache.  The handler echoes the
// caller's user id so a leaked cache entry shows up in the body.
func newCachedAPI(cfg config.CacheConfig, rdb *redis.Client) *echo.Echo {
	e := echo.New()
	grp := e.Group("/v1", JWTAuth(testSecret), NewRedisCache(cfg, rdb))
	grp.GET("/my-children", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"owner": c.Get("user_id")})
	})
	return e
}

func getAs(e *echo.Echo, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/my-children", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCacheHitStaysBehindAuth(t *testing.T) {
	e := newCachedAPI(cacheTestConfig(), testRedis(t))

	rec := getAs(e, bearerFor(t, 42))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec = getAs(e, bearerFor(t, 42))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), "42")

	// Without a token the request must die at JWTAuth; a cached
	// entry for the route must never answer it.
	rec = getAs(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEqual(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestCachePartitionsByUser(t *testing.T) {
	e := newCachedAPI(cacheTestConfig(), testRedis(t))

	rec := getAs(e, bearerFor(t, 42))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "42")

	// A different user on the same route and query must not be
	// served user 42's cached body.
	rec = getAs(e, bearerFor(t, 7))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), "7")
	assert.NotContains(t, rec.Body.String(), "42")
}

func TestCacheSkipsOversizedBody(t *testing.T) {
	cfg := cacheTestConfig()
	cfg.MaxBodyBytes = 8
	big := strings.Repeat("x", 64)

	e := echo.New()
	grp := e.Group("/v1", JWTAuth(testSecret), NewRedisCache(cfg, testRedis(t)))
	grp.GET("/my-children", func(c echo.Context) error {
		return c.String(http.StatusOK, big)
	})

	rec := getAs(e, bearerFor(t, 42))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, big, rec.Body.String())

	// The body exceeded the capture limit, so nothing was stored:
	// the next request must be a fresh MISS with the full body, not
	// a truncated HIT.
	rec = getAs(e, bearerFor(t, 42))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, big, rec.Body.String())
}
