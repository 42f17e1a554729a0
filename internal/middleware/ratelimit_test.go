package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/carpoolio/carpool-api/internal/config"
)

func rateTestConfig(strategy string, capacity int) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Hour, // no refill within a test run
		TTL:            time.Hour,
		KeyStrategy:    strategy,
		Prefix:         "test:rl",
		Debug:          true,
	}
}

func TestTokenBucketKeysByAuthenticatedUser(t *testing.T) {
	e := echo.New()
	grp := e.Group("/v1", JWTAuth(testSecret), NewTokenBucket(rateTestConfig("user", 1), testRedis(t)))
	grp.GET("/my-children", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := getAs(e, bearerFor(t, 42))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("X-RateLimit-Key"), ":user:42")

	// User 42's bucket is drained; the same user is throttled.
	rec = getAs(e, bearerFor(t, 42))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different user gets a bucket of their own.
	rec = getAs(e, bearerFor(t, 7))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("X-RateLimit-Key"), ":user:7")
}

func TestTokenBucketSetsRetryAfter(t *testing.T) {
	e := echo.New()
	grp := e.Group("/v1", JWTAuth(testSecret), NewTokenBucket(rateTestConfig("user", 1), testRedis(t)))
	grp.GET("/my-children", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := getAs(e, bearerFor(t, 42))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = getAs(e, bearerFor(t, 42))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}
