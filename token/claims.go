package token

import (
	"errors"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNotJWT is returned when a token cannot be parsed as a JWT. Opaque
// tokens are legal; their expiry is simply unknown.
var ErrNotJWT = errors.New("token is not a JWT")

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims holds the registered claims the console reads from an access token.
// The signature is never verified here: the backend is the authority, these
// values only drive display and expiry hints.
type Claims struct {
	TokenType string    // "access" or "refresh"
	UserID    string    // user_id claim
	JTI       string    // Unique token ID
	IssuedAt  time.Time // Zero when absent
	ExpiresAt time.Time // Zero when absent
}

// Inspect parses rawToken without verifying the signature.
func Inspect(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrNotJWT
	}
	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, ErrNotJWT
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, ErrNotJWT
	}

	c := &Claims{}
	c.TokenType, _ = claims["token_type"].(string)
	c.JTI, _ = claims["jti"].(string)
	switch v := claims["user_id"].(type) {
	case string:
		c.UserID = v
	case float64:
		c.UserID = strconv.FormatInt(int64(v), 10)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	return c, nil
}

// Expired reports whether the claims carry an expiry that has passed.
func (c *Claims) Expired() bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !NowTimeFunc().Before(c.ExpiresAt)
}

// TTL returns the time left before expiry, zero when unknown or expired.
func (c *Claims) TTL() time.Duration {
	if c == nil || c.ExpiresAt.IsZero() {
		return 0
	}
	if d := c.ExpiresAt.Sub(NowTimeFunc()); d > 0 {
		return d
	}
	return 0
}

// OAuth2 converts the pair into an oauth2.Token so that oauth2 aware clients
// can share the console session. Expiry comes from the access token claims.
func (p TokenPair) OAuth2() *oauth2.Token {
	t := &oauth2.Token{
		AccessToken:  p.Access,
		RefreshToken: p.Refresh,
		TokenType:    "Bearer",
	}
	if c, err := Inspect(p.Access); err == nil {
		t.Expiry = c.ExpiresAt
	}
	return t
}
