package share

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relayonprem/control-plane/internal/store"
)

func TestInviteValid(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	two := int32(2)

	assert.True(t, inviteValid(&store.ShareInvite{}, now))
	assert.True(t, inviteValid(&store.ShareInvite{ExpiresAt: &future}, now))
	assert.True(t, inviteValid(&store.ShareInvite{MaxUses: &two, UseCount: 1}, now))

	assert.False(t, inviteValid(&store.ShareInvite{RevokedAt: &past}, now))
	assert.False(t, inviteValid(&store.ShareInvite{ExpiresAt: &past}, now))
	assert.False(t, inviteValid(&store.ShareInvite{MaxUses: &two, UseCount: 2}, now))
}
