package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
)

func TestSenderPost_HeadersAndSignature(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	payload, err := notify.BuildPayload(uuid.New(), "share.created", map[string]any{"k": "v"}, nil, time.Now())
	require.NoError(t, err)

	hook := &store.Webhook{ID: uuid.New(), URL: srv.URL, Secret: "topsecret"}
	delivery := &store.WebhookDelivery{ID: uuid.New(), EventType: "share.created", Payload: payload}

	sender := NewSender(nil, NewURLChecker(true), crypto.SignPayload)
	status, _, err := sender.post(context.Background(), hook, delivery)
	require.NoError(t, err)
	assert.Equal(t, int32(http.StatusNoContent), status)

	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "RelayOnPrem-Webhooks/"+Version, gotHeaders.Get("User-Agent"))
	assert.Equal(t, "share.created", gotHeaders.Get("X-Relay-Event"))
	assert.Equal(t, delivery.ID.String(), gotHeaders.Get("X-Relay-Delivery"))

	sig := gotHeaders.Get("X-Relay-Signature")
	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, crypto.VerifySignature("topsecret", gotBody, sig))
	assert.Equal(t, payload, gotBody)
}

func TestSenderPost_TruncatesResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer srv.Close()

	payload, err := notify.BuildPayload(uuid.New(), "ping", nil, nil, time.Now())
	require.NoError(t, err)

	sender := NewSender(nil, NewURLChecker(true), crypto.SignPayload)
	status, body, err := sender.post(context.Background(),
		&store.Webhook{ID: uuid.New(), URL: srv.URL, Secret: "s"},
		&store.WebhookDelivery{ID: uuid.New(), EventType: "ping", Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, int32(http.StatusInternalServerError), status)
	assert.Len(t, body, maxResponseBody)
}

func TestRetrySchedule(t *testing.T) {
	require.Len(t, retrySchedule, maxAttempts)
	assert.Equal(t, 60*time.Second, retrySchedule[0])
	assert.Equal(t, 24*time.Hour, retrySchedule[5])
	for i := 1; i < len(retrySchedule); i++ {
		assert.Greater(t, retrySchedule[i], retrySchedule[i-1])
	}
}
