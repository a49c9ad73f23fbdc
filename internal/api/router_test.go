package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relayonprem/control-plane/internal/auth"
)

func TestEmailVerifyConfirmNeedsNoBearer(t *testing.T) {
	s := NewServer(Deps{Tokens: auth.NewJWTProvider("router-test-secret", time.Minute)})
	router := s.Router()

	// The emailed link is its own credential; the route must not sit
	// behind bearer auth. An empty body reaches the handler and fails
	// validation there instead of being rejected as unauthenticated.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/email/verify/confirm", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Requesting a fresh verification email still requires a login.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/auth/email/verify/request", nil)
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
