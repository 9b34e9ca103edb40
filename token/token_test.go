package token_test

import (
	"testing"
	"time"

	"github.com/HARD953/distribut-sub001/token"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func fixClock(t *testing.T, now time.Time) {
	t.Helper()
	prev := token.NowTimeFunc
	token.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { token.NowTimeFunc = prev })
}

func TestInspect(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)

	raw := signedToken(t, jwtlib.MapClaims{
		"token_type": "access",
		"user_id":    float64(42),
		"jti":        "abc",
		"iat":        now.Add(-time.Minute).Unix(),
		"exp":        now.Add(4 * time.Minute).Unix(),
	})

	c, err := token.Inspect(raw)
	require.NoError(t, err)
	require.Equal(t, "access", c.TokenType)
	require.Equal(t, "42", c.UserID)
	require.Equal(t, "abc", c.JTI)
	require.False(t, c.Expired())
	require.Equal(t, 4*time.Minute, c.TTL())

	t.Run("expired", func(t *testing.T) {
		fixClock(t, now.Add(time.Hour))
		require.True(t, c.Expired())
		require.Zero(t, c.TTL())
	})
}

func TestInspectOpaqueToken(t *testing.T) {
	_, err := token.Inspect("A1")
	require.ErrorIs(t, err, token.ErrNotJWT)

	_, err = token.Inspect("   ")
	require.ErrorIs(t, err, token.ErrNotJWT)

	var c *token.Claims
	require.False(t, c.Expired())
	require.Zero(t, c.TTL())
}

func TestOAuth2Conversion(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	raw := signedToken(t, jwtlib.MapClaims{"exp": exp.Unix()})

	tok := token.TokenPair{Access: raw, Refresh: "R1"}.OAuth2()
	require.Equal(t, raw, tok.AccessToken)
	require.Equal(t, "R1", tok.RefreshToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.True(t, tok.Expiry.Equal(exp))

	opaque := token.TokenPair{Access: "A1", Refresh: "R1"}.OAuth2()
	require.True(t, opaque.Expiry.IsZero())
}

func TestCredentials(t *testing.T) {
	c := token.Credentials{Username: "alice", Password: "secret"}
	require.True(t, c.Valid())
	require.NotContains(t, c.String(), "secret")
	require.False(t, token.Credentials{Username: " ", Password: "x"}.Valid())
	require.False(t, token.TokenPair{Access: "A1"}.Valid())
}
