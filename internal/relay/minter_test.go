package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/share"
)

func TestParseMode(t *testing.T) {
	action, err := parseMode("read")
	require.NoError(t, err)
	assert.Equal(t, share.ActionRead, action)

	action, err = parseMode("write")
	require.NoError(t, err)
	assert.Equal(t, share.ActionWrite, action)

	_, err = parseMode("rw")
	assert.ErrorIs(t, err, ErrBadMode)
	_, err = parseMode("")
	assert.ErrorIs(t, err, ErrBadMode)
}

func TestPublicKeyInfo(t *testing.T) {
	keys, generated, err := crypto.LoadRelayKeys("", "")
	require.NoError(t, err)
	require.True(t, generated)

	m := NewMinter(Config{RelayURL: "wss://relay.example.com"}, keys, nil, nil, nil)
	info := m.PublicKey()
	assert.Equal(t, keys.KeyID, info.KeyID)
	assert.Equal(t, keys.PublicKeyBase64(), info.PublicKey)
	assert.Equal(t, "EdDSA", info.Algorithm)
}
