package helpers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError_Envelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "req-42")
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()

	RespondError(rr, req, http.StatusNotFound, "Share not found")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body["error"].Code)
	assert.Equal(t, "Share not found", body["error"].Message)
	assert.Equal(t, "req-42", body["error"].RequestID)
	assert.Nil(t, body["error"].Details)
}

func TestRespondErrorDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	rr := httptest.NewRecorder()

	RespondErrorDetails(rr, req, http.StatusUnprocessableEntity, "Validation failed",
		map[string]string{"kind": "must be doc or folder"})

	var body map[string]ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	details, ok := body["error"].Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "must be doc or folder", details["kind"])
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}
	req := httptest.NewRequest(http.MethodPost, "/x",
		strings.NewReader(`{"email":"a@b.c","admin":true}`))

	err := DecodeJSON(req, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin")
}

func TestDecodeJSON_OK(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"email":"a@b.c"}`))

	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "a@b.c", dst.Email)
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "203.0.113.9:51234",
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7"},
			want:       "198.51.100.7",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2, 10.0.0.3"},
			want:       "198.51.100.7",
		},
		{
			name:       "garbage x-forwarded-for falls through to x-real-ip",
			remoteAddr: "10.0.0.1:80",
			headers: map[string]string{
				"X-Forwarded-For": "not-an-ip",
				"X-Real-IP":       "192.0.2.44",
			},
			want: "192.0.2.44",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, GetRealIP(req))
		})
	}
}
