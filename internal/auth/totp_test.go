package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTOTPCode(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "test", AccountName: "a@b.c"})
	require.NoError(t, err)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)
	assert.True(t, validateTOTPCode(key.Secret(), code))

	// One period of skew in either direction is accepted.
	past, err := totp.GenerateCode(key.Secret(), time.Now().Add(-30*time.Second))
	require.NoError(t, err)
	assert.True(t, validateTOTPCode(key.Secret(), past))

	stale, err := totp.GenerateCode(key.Secret(), time.Now().Add(-5*time.Minute))
	require.NoError(t, err)
	assert.False(t, validateTOTPCode(key.Secret(), stale))

	assert.False(t, validateTOTPCode(key.Secret(), "000000"))
	assert.False(t, validateTOTPCode("", code))
	assert.False(t, validateTOTPCode(key.Secret(), ""))
}

func TestGenerateBackupCodes(t *testing.T) {
	plaintext, hashed, err := generateBackupCodes()
	require.NoError(t, err)
	require.Len(t, plaintext, backupCodeCount)
	require.Len(t, hashed, backupCodeCount)

	seen := make(map[string]bool)
	for i, code := range plaintext {
		assert.Len(t, code, backupCodeLength)
		for _, c := range code {
			assert.Contains(t, backupCodeAlphabet, string(c))
		}
		assert.False(t, seen[code], "backup codes must be unique")
		seen[code] = true

		assert.NotEmpty(t, hashed[i].Hash)
		assert.NotContains(t, hashed[i].Hash, code)
		assert.False(t, hashed[i].Used)
	}

	// Ambiguous characters are excluded from the alphabet.
	for _, banned := range []string{"0", "O", "1", "I"} {
		assert.False(t, strings.Contains(backupCodeAlphabet, banned))
	}
}

func TestValidatePassword(t *testing.T) {
	assert.ErrorIs(t, ValidateNewPassword("short"), ErrWeakPassword)
	assert.ErrorIs(t, ValidateNewPassword(""), ErrWeakPassword)
	assert.NoError(t, ValidateNewPassword("longenough"))
}
