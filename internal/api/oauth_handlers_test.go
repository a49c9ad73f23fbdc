package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		proto   string // X-Forwarded-Proto
		want    string
	}{
		{
			name: "plain http",
			host: "cp.example.com",
			want: "http://cp.example.com",
		},
		{
			name:  "forwarded https elevates",
			host:  "cp.example.com",
			proto: "https",
			want:  "https://cp.example.com",
		},
		{
			name:  "localhost stays http behind https proxy",
			host:  "localhost:8080",
			proto: "https",
			want:  "http://localhost:8080",
		},
		{
			name:  "loopback v4 stays http",
			host:  "127.0.0.1:8080",
			proto: "https",
			want:  "http://127.0.0.1:8080",
		},
		{
			name:  "loopback v6 stays http",
			host:  "[::1]:8080",
			proto: "https",
			want:  "http://[::1]:8080",
		},
		{
			name:  "case-insensitive proto header",
			host:  "cp.example.com:443",
			proto: "HTTPS",
			want:  "https://cp.example.com:443",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/auth/oauth/oidc/authorize", nil)
			req.Host = tc.host
			if tc.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tc.proto)
			}
			assert.Equal(t, tc.want, requestBaseURL(req))
		})
	}
}

func TestWantsHTML(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, wantsHTML(req))

	req.Header.Set("Accept", "application/json")
	assert.False(t, wantsHTML(req))

	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	assert.True(t, wantsHTML(req))
}

func TestDeprecationHeader(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	deprecationHeader(inner).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/shares", nil))

	assert.Equal(t, "true", rr.Header().Get("Deprecation"))
	assert.Contains(t, rr.Header().Get("Link"), `rel="successor-version"`)
}
