package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTokenBucketRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60, nil)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
}

func TestLoginLimiterIsPerCourt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.POST("/courts/:court/login", NewTokenBucket(1, 1, ByClientIPAndCourt).GinMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	post := func(court string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/courts/"+court+"/login", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post("court-1"))
	assert.Equal(t, http.StatusTooManyRequests, post("court-1"))
	assert.Equal(t, http.StatusOK, post("court-2"))
}
