package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	st := NewState("https://app.example.com/callback", "/shares/42")
	require.NotEmpty(t, st.CodeVerifier)

	encoded, err := st.Encode()
	require.NoError(t, err)

	decoded, err := DecodeState(encoded)
	require.NoError(t, err)
	assert.Equal(t, st, decoded)
}

func TestDecodeState_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"not json", "bm90IGpzb24"},
		{"missing verifier", "eyJyZWRpcmVjdF91cmkiOiJodHRwczovL2EifQ"},
		{"missing redirect", "eyJjb2RlX3ZlcmlmaWVyIjoiYWJjIn0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeState(tt.input)
			assert.ErrorIs(t, err, ErrBadState)
		})
	}
}

func TestExtractGroups(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]any
		want   []string
	}{
		{
			name:   "groups list",
			claims: map[string]any{"groups": []any{"admins", "staff"}},
			want:   []string{"admins", "staff"},
		},
		{
			name:   "roles fallback",
			claims: map[string]any{"roles": []any{"editor"}},
			want:   []string{"editor"},
		},
		{
			name:   "comma separated string",
			claims: map[string]any{"memberOf": "admins, staff ,ops"},
			want:   []string{"admins", "staff", "ops"},
		},
		{
			name:   "groups wins over roles",
			claims: map[string]any{"groups": []any{"a"}, "roles": []any{"b"}},
			want:   []string{"a"},
		},
		{
			name:   "non string entries skipped",
			claims: map[string]any{"groups": []any{"a", 7, "b"}},
			want:   []string{"a", "b"},
		},
		{
			name:   "no claim",
			claims: map[string]any{"sub": "x"},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractGroups(tt.claims))
		})
	}
}

func TestIsAdminByGroups(t *testing.T) {
	admins := []string{"Admins", "platform-ops"}
	assert.True(t, isAdminByGroups([]string{"staff", "admins"}, admins))
	assert.True(t, isAdminByGroups([]string{"Platform-Ops"}, admins))
	assert.False(t, isAdminByGroups([]string{"staff"}, admins))
	assert.False(t, isAdminByGroups(nil, admins))
	assert.False(t, isAdminByGroups([]string{"admins"}, nil))
}
