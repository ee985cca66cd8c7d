package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrCredentialExpired is returned for a JWT whose exp claim has passed.
var ErrCredentialExpired = errors.New("credential expired")

// CredentialExpiry reads the exp claim of a JWT bearer credential without
// verifying its signature; the server remains the only verifier. ok is false
// for opaque (non-JWT) tokens or tokens without exp.
func CredentialExpiry(token string) (exp time.Time, ok bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// checkCredential rejects expired JWT credentials. Opaque tokens pass.
func checkCredential(token string, now time.Time) error {
	exp, ok := CredentialExpiry(token)
	if ok && !now.Before(exp) {
		return ErrCredentialExpired
	}
	return nil
}
