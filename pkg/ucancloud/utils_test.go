package ucancloud

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	assert.Equal(t, "5f4dcc3b5aa765d61d8327deb882cf99", HashPassword("password"))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)

	got, err := TokenExpiry(raw)
	require.NoError(t, err)
	assert.Equal(t, exp.Unix(), got.Unix())

	assert.True(t, TokenExpiresWithin(raw, exp.Add(-time.Minute), 5*time.Minute))
	assert.False(t, TokenExpiresWithin(raw, exp.Add(-time.Hour), 5*time.Minute))
}

func TestTokenExpiryOpaque(t *testing.T) {
	_, err := TokenExpiry("opaque-session-token")
	assert.Error(t, err)
	assert.False(t, TokenExpiresWithin("opaque-session-token", time.Now(), time.Hour))
	assert.False(t, TokenExpiresWithin("", time.Now(), time.Hour))
}

func TestEnvelopeCode(t *testing.T) {
	cases := map[string]bool{
		`{"error_code":2000}`:    true,
		`{"error_code":"2000"}`:  true,
		`{"error_code":" 2000"}`: true,
		`{"error_code":2001}`:    false,
		`{}`:                     false,
	}
	for payload, ok := range cases {
		env, err := decodeEnvelope([]byte(payload))
		require.NoError(t, err)
		assert.Equal(t, ok, env.ok(), payload)
	}
}

func TestRoleDisplayName(t *testing.T) {
	assert.Equal(t, "Administrator", RoleAdmin.DisplayName())
	assert.Equal(t, "CUSTOM", Role("CUSTOM").DisplayName())
}
