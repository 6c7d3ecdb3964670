package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenAuthenticator maps a bearer credential to a stable numeric user
// identity. Callers trust its output and never re-validate credentials.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (int, error)
}

// JWTAuthenticator verifies HMAC-signed tokens issued by the account service.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator constructs a JWTAuthenticator.
func NewJWTAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret}
}

// Authenticate parses and verifies the token, returning the user id carried
// in the userId claim.
func (a *JWTAuthenticator) Authenticate(_ context.Context, tokenString string) (int, error) {
	if tokenString == "" {
		return 0, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	id, ok := claims["userId"].(float64)
	if !ok || id <= 0 {
		return 0, ErrInvalidToken
	}
	return int(id), nil
}

// IssueToken signs a token for a user id. Used by tests and local tooling;
// production tokens come from the account service with the same secret.
func (a *JWTAuthenticator) IssueToken(userID int, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"userId": userID,
		"exp":    time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
