package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims holds the registered claims of an access token. The client has no
// verification key, so these are informational only: the server remains the
// authority on whether a token is accepted.
type Claims struct {
	Sub string
	Jti string
	Exp int64
	Iat int64
}

// ExpiresAt returns the exp claim as a time, or the zero time when absent.
func (c *Claims) ExpiresAt() time.Time {
	if c.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(c.Exp, 0)
}

// Expired reports whether exp is present and in the past.
func (c *Claims) Expired() bool {
	return c.Exp != 0 && NowTimeFunc().Unix() >= c.Exp
}

// Inspect extracts claims from a JWT without verifying its signature.
func Inspect(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("empty token")
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	return &Claims{
		Sub: sub,
		Jti: jti,
		Exp: int64(exp),
		Iat: int64(iat),
	}, nil
}
