// Package tokentest mints signed JWTs for tests.
package tokentest

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var signingKey = []byte("test-signing-key")

// Mint returns an HS256 token for subject that expires at exp.
func Mint(t testing.TB, subject string, exp time.Time) string {
	t.Helper()
	return sign(t, jwtlib.MapClaims{
		"sub":        subject,
		"exp":        exp.Unix(),
		"iat":        time.Now().Unix(),
		"jti":        uuid.New().String(),
		"token_type": "access",
	})
}

// MintWithoutExpiry returns a token that has no exp claim.
func MintWithoutExpiry(t testing.TB, subject string) string {
	t.Helper()
	return sign(t, jwtlib.MapClaims{"sub": subject})
}

// MintClaims signs arbitrary claims.
func MintClaims(t testing.TB, claims jwtlib.MapClaims) string {
	t.Helper()
	return sign(t, claims)
}

func sign(t testing.TB, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
