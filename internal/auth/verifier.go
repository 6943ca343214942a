package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSubject is returned when a token verifies but carries no user id.
var ErrNoSubject = errors.New("token has no subject claim")

// Verifier validates access tokens issued by the hosted auth provider and
// extracts the user identity. The service never creates sessions itself;
// sign-in, sign-up, and refresh all live with the provider, and this side
// only checks the shared-secret signature.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a token verifier for the given shared secret.
// Parameters:
//   - secret: HMAC secret the auth provider signs tokens with.
// Returns:
//   - *Verifier: initialized verifier.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// UserID verifies a token and returns the user id from its subject claim.
// Parameters:
//   - tokenString: raw bearer token.
// Returns:
//   - string: user id.
//   - error: non-nil if the token is invalid or has no subject.
func (v *Verifier) UserID(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrNoSubject
	}
	return sub, nil
}
