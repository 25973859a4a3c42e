// Package token checks bearer token expiry without a server round-trip.
// Signature verification is deliberately not performed here: the upstream
// API is the trust anchor and rejects forged tokens with 401. The gateway
// only needs to know whether a token is already expired locally.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// parser is stateless and safe for concurrent use.
var parser = jwt.NewParser()

// Valid reports whether raw is a well-formed JWT whose exp claim is in the
// future. It fails closed: any decode error (wrong segment count, bad
// base64, bad JSON) or a missing exp claim yields false.
func Valid(raw string) bool {
	exp, err := ExpiresAt(raw)
	if err != nil {
		return false
	}
	return exp.After(time.Now())
}

// ExpiresAt returns the exp claim of an unverified JWT.
func ExpiresAt(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, jwt.ErrTokenRequiredClaimMissing
	}
	return exp.Time, nil
}

// Subject returns the sub claim of an unverified JWT, or "" when absent.
// Used for diagnostics only; authorization decisions come from the cached
// profile, never from token claims.
func Subject(raw string) string {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
