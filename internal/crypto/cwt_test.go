package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestMintVerifyCWT_RoundTrip(t *testing.T) {
	pub, priv := testKeypair(t)
	now := time.Unix(1700000000, 0)

	token, err := MintCWT(priv, "relay-control-plane", "doc:my-doc-id:rw", now)
	require.NoError(t, err)

	claims, err := VerifyCWT(pub, token)
	require.NoError(t, err)

	assert.Equal(t, "relay-control-plane", claims.Issuer)
	assert.Equal(t, int64(1700000000), claims.IssuedAt)
	assert.Equal(t, "doc:my-doc-id:rw", claims.Scope)
}

func TestVerifyCWT_WrongKeyFails(t *testing.T) {
	_, priv := testKeypair(t)
	otherPub, _ := testKeypair(t)

	token, err := MintCWT(priv, "relay-control-plane", "doc:d:r", time.Now())
	require.NoError(t, err)

	_, err = VerifyCWT(otherPub, token)
	assert.Error(t, err)
}

// The relay depends on a byte-exact layout: tag 61 wrapping tag 18 wrapping
// [protected, {}, payload, 64-byte signature], protected header {1: -8} only,
// claims {1, 6, -80201} only.
func TestMintCWT_WireShape(t *testing.T) {
	_, priv := testKeypair(t)

	token, err := MintCWT(priv, "relay-control-plane", "doc:my-doc-id:rw", time.Unix(1700000000, 0))
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err, "token must be base64url without padding")

	var outer cbor.RawTag
	require.NoError(t, cbor.Unmarshal(raw, &outer))
	assert.Equal(t, uint64(61), outer.Number)

	var inner cbor.RawTag
	require.NoError(t, cbor.Unmarshal(outer.Content, &inner))
	assert.Equal(t, uint64(18), inner.Number)

	var arr []cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(inner.Content, &arr))
	require.Len(t, arr, 4)

	var protected []byte
	require.NoError(t, cbor.Unmarshal(arr[0], &protected))
	var header map[int64]int64
	require.NoError(t, cbor.Unmarshal(protected, &header))
	assert.Equal(t, map[int64]int64{1: -8}, header, "no kid, no extra header entries")

	var unprotected map[any]any
	require.NoError(t, cbor.Unmarshal(arr[1], &unprotected))
	assert.Empty(t, unprotected)

	var payload []byte
	require.NoError(t, cbor.Unmarshal(arr[2], &payload))
	var claims map[int64]any
	require.NoError(t, cbor.Unmarshal(payload, &claims))
	assert.Len(t, claims, 3, "no exp, no aud")
	assert.Equal(t, "relay-control-plane", claims[1])
	assert.Equal(t, "doc:my-doc-id:rw", claims[-80201])
	assert.NotContains(t, claims, int64(4), "exp must be absent")
	assert.NotContains(t, claims, int64(3), "aud must be absent")

	var sig []byte
	require.NoError(t, cbor.Unmarshal(arr[3], &sig))
	assert.Len(t, sig, 64)
}

func TestVerifyCWT_RejectsTamperedPayload(t *testing.T) {
	pub, priv := testKeypair(t)

	token, err := MintCWT(priv, "relay-control-plane", "doc:a:r", time.Now())
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = VerifyCWT(pub, base64.RawURLEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestDocScope(t *testing.T) {
	assert.Equal(t, "doc:abc:rw", DocScope("abc", true))
	assert.Equal(t, "doc:abc:r", DocScope("abc", false))
}
