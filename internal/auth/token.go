package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/lobbyrelay/internal/domain"
)

var ErrMissingUserID = errors.New("token has no user_id claim")

// Claims is the part of a viewer token the relay cares about.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 tokens signed with the shared secret.
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewTokenVerifier creates a verifier for secret. Tokens must carry an exp
// claim; expiry is judged against clock.
func NewTokenVerifier(secret []byte, clock clockwork.Clock) *TokenVerifier {
	return &TokenVerifier{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
	}
}

// Verify validates token and returns the identity in its claims.
func (v *TokenVerifier) Verify(token string) (domain.Identity, error) {
	var claims Claims
	if _, err := v.parser.ParseWithClaims(token, &claims, v.keyFunc); err != nil {
		return domain.Identity{}, fmt.Errorf("verify token: %w", err)
	}
	if claims.UserID == "" {
		return domain.Identity{}, ErrMissingUserID
	}
	return domain.Identity{UserID: claims.UserID}, nil
}

func (v *TokenVerifier) keyFunc(_ *jwt.Token) (any, error) {
	return v.secret, nil
}
