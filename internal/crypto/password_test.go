package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgon2idHasher_RoundTrip(t *testing.T) {
	h := NewArgon2idHasher()

	hash, err := h.Hash("super-secret")
	require.NoError(t, err)

	// Self-describing format
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"), "hash must embed algorithm and parameters: %s", hash)

	assert.NoError(t, h.Compare(hash, "super-secret"))
	assert.ErrorIs(t, h.Compare(hash, "wrong-password"), ErrPasswordMismatch)
}

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher()

	hash, err := h.Hash("share-password")
	require.NoError(t, err)

	assert.NoError(t, h.Compare(hash, "share-password"))
	assert.ErrorIs(t, h.Compare(hash, "nope"), ErrPasswordMismatch)
}

func TestSignPayload_Format(t *testing.T) {
	sig := SignPayload("secret", []byte(`{"event":"ping"}`))
	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.Len(t, sig, len("sha256=")+64)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event_type":"share.created"}`)
	sig := SignPayload("secret", body)

	assert.True(t, VerifySignature("secret", body, sig))
	assert.False(t, VerifySignature("rotated", body, sig), "old secret must not verify new deliveries")
	assert.False(t, VerifySignature("secret", []byte("tampered"), sig))
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(32)
	require.NoError(t, err)
	b, err := GenerateSecureToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 64, "256 bits hex-encoded")
	assert.NotEqual(t, a, b)
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
