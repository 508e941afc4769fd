package token

import (
	"context"
	"time"

	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/token/jwt"
	"golang.org/x/oauth2"
)

// TokenPair is the credential set issued by verify-otp and refresh-token.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresAt int64  `json:"refresh_token_expires_at"` // epoch seconds
}

// RefreshUsable reports whether the refresh token is present and unexpired.
func (p TokenPair) RefreshUsable(now time.Time) bool {
	return p.RefreshToken != "" && now.Unix() < p.RefreshExpiresAt
}

// Valid reports whether the pair can still authenticate a session. A pair
// whose refresh expiry has passed is invalid regardless of its other fields.
func (p TokenPair) Valid(now time.Time) bool {
	return p.AccessToken != "" && p.RefreshUsable(now)
}

// RefreshExpiry returns RefreshExpiresAt as a time.
func (p TokenPair) RefreshExpiry() time.Time {
	return time.Unix(p.RefreshExpiresAt, 0)
}

// OAuth2 converts the pair for use with golang.org/x/oauth2. Expiry is taken
// from the access token's exp claim when the token is a JWT, and left zero
// (never expires) otherwise.
func (p TokenPair) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  p.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: p.RefreshToken,
	}
	if claims, err := jwt.Inspect(p.AccessToken); err == nil {
		tok.Expiry = claims.ExpiresAt()
	}
	return tok
}

// TokenResponse is the body returned by verify-otp and refresh-token.
type TokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresAt int64  `json:"refresh_token_expires_at"`
}

// Validate rejects responses missing any of the three fields.
func (r TokenResponse) Validate() error {
	if r.AccessToken == "" || r.RefreshToken == "" || r.RefreshTokenExpiresAt == 0 {
		return moerrors.ErrInvalidTokenPair
	}
	return nil
}

func (r TokenResponse) Pair() TokenPair {
	return TokenPair{
		AccessToken:      r.AccessToken,
		RefreshToken:     r.RefreshToken,
		RefreshExpiresAt: r.RefreshTokenExpiresAt,
	}
}

type storeTokenSource struct {
	ctx   context.Context
	store Store
}

// StoreTokenSource exposes the currently stored access token as an
// oauth2.TokenSource. It never refreshes; refresh is driven by 401 handling
// in the authenticated client.
func StoreTokenSource(ctx context.Context, store Store) oauth2.TokenSource {
	return storeTokenSource{ctx: ctx, store: store}
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	pair, err := s.store.Load(s.ctx)
	if err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, moerrors.ErrNoAccessToken
	}
	return pair.OAuth2(), nil
}
