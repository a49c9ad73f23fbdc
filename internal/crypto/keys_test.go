package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRelayKeys_GeneratesWhenEmpty(t *testing.T) {
	keys, generated, err := LoadRelayKeys("", "")
	require.NoError(t, err)

	assert.True(t, generated)
	assert.Len(t, keys.Private, 64)
	assert.True(t, strings.HasPrefix(keys.KeyID, "relay_cp_"))
}

func TestLoadRelayKeys_PEMRoundTrip(t *testing.T) {
	keys, _, err := LoadRelayKeys("", "")
	require.NoError(t, err)

	pemStr, err := MarshalPrivateKeyPEM(keys.Private)
	require.NoError(t, err)

	loaded, generated, err := LoadRelayKeys(pemStr, "")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, keys.Private, loaded.Private)
	assert.Equal(t, keys.KeyID, loaded.KeyID, "key id derivation must be stable")

	// Base64-wrapped PEM is accepted as well
	b64 := base64.StdEncoding.EncodeToString([]byte(pemStr))
	loaded2, _, err := LoadRelayKeys(b64, "")
	require.NoError(t, err)
	assert.Equal(t, keys.Private, loaded2.Private)
}

func TestLoadRelayKeys_ExplicitKeyID(t *testing.T) {
	keys, _, err := LoadRelayKeys("", "custom-kid")
	require.NoError(t, err)
	assert.Equal(t, "custom-kid", keys.KeyID)
}

func TestLoadRelayKeys_RejectsGarbage(t *testing.T) {
	_, _, err := LoadRelayKeys("not a key", "")
	assert.Error(t, err)
}
