package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiter_BlocksAfterBurst(t *testing.T) {
	limiter := NewIPRateLimiter(PerMinute("test", 3))
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do("203.0.113.5:1000"))
	}
	assert.Equal(t, http.StatusTooManyRequests, do("203.0.113.5:1000"))

	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, do("203.0.113.6:1000"))
}

func TestLimitClassRates(t *testing.T) {
	m := PerMinute("a", 30)
	assert.Equal(t, 30, m.Burst)
	assert.InDelta(t, 0.5, float64(m.RPS), 1e-9)

	h := PerHour("b", 3)
	assert.Equal(t, 3, h.Burst)
	assert.InDelta(t, 3.0/3600.0, float64(h.RPS), 1e-12)
}
