package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayload(t *testing.T) {
	eventID := uuid.New()
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	body, err := BuildPayload(eventID, "share.created", map[string]any{
		"share_id": "abc",
		"actor":    map[string]any{"user_id": "u1", "email": "a@b.c"},
	}, map[string]any{"ip_address": "203.0.113.9"}, ts)
	require.NoError(t, err)

	var p Payload
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, eventID.String(), p.EventID)
	assert.Equal(t, "share.created", p.EventType)
	assert.Equal(t, "2026-03-14T09:26:53Z", p.Timestamp)
	assert.Equal(t, "abc", p.Data["share_id"])
	assert.Equal(t, "203.0.113.9", p.Context["ip_address"])
}

func TestBuildPayload_NoContext(t *testing.T) {
	body, err := BuildPayload(uuid.New(), "ping", nil, nil, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, string(body), `"context"`)
	assert.Contains(t, string(body), `"data":{}`)
}

func TestEventTypeVocabulary(t *testing.T) {
	assert.True(t, EventShareCreated.Known())
	assert.True(t, EventUserDeleted.Known())
	assert.False(t, EventType("no.such.event").Known())
	assert.False(t, EventPing.Known(), "ping is synthesized, not subscribable")

	assert.True(t, EventUserCreated.IsAdminOnly())
	assert.True(t, EventUserUpdated.IsAdminOnly())
	assert.True(t, EventUserDeleted.IsAdminOnly())
	assert.False(t, EventShareCreated.IsAdminOnly())
	assert.False(t, EventUserLogin.IsAdminOnly())
}

func TestRenderEmail(t *testing.T) {
	subject, body, err := RenderEmail(TemplateInvite, map[string]any{
		"role":       "viewer",
		"path":       "notes/plan.md",
		"invite_url": "https://cp.example.com/invite/abc",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, subject)
	assert.Contains(t, body, "viewer")
	assert.Contains(t, body, "notes/plan.md")
	assert.Contains(t, body, "https://cp.example.com/invite/abc")

	_, _, err = RenderEmail("bogus_template", nil)
	assert.Error(t, err)
}
