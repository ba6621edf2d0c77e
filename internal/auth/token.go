// Package auth issues and verifies the signed session tokens used by the
// API. Tokens are stateless HS256 JWTs carrying the account id as subject
// plus a role claim; validity beyond the signature and expiry (account
// existence, blocked flag) is checked by the HTTP auth gate on every request.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every expected verification failure: bad
// signature, wrong signing method, malformed structure, expired timestamp,
// or missing subject. Callers treat it as "unauthenticated" and must not
// leak the underlying reason to the client.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT claim set for a session token.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken produces a signed token for the given account id and role,
// expiring after ttl.
func IssueToken(userID int, role string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken verifies a token and returns the subject account id and role
// claim. All verification failures wrap ErrInvalidToken.
func ParseToken(tokenString string, secret []byte) (int, string, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, "", ErrInvalidToken
	}

	subject := strings.TrimSpace(claims.Subject)
	userID, err := strconv.Atoi(subject)
	if err != nil || userID < 1 {
		return 0, "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return userID, claims.Role, nil
}
