package token

import (
	"encoding/json"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded, unverified payload of an access token.
type Claims struct {
	ExpiresAt *time.Time       // nil when the token carries no exp claim
	Raw       jwtlib.MapClaims // every claim as decoded
}

// DecodeClaims reads the payload segment of a JWT without verifying its signature. The header is
// not interpreted, so tokens signed with any algorithm decode.
// Any malformed input (wrong segment count, bad base64, bad JSON) yields false.
func DecodeClaims(rawToken string) (*Claims, bool) {
	segments := strings.Split(strings.TrimSpace(rawToken), ".")
	if len(segments) != 3 {
		return nil, false
	}

	payload, err := jwtlib.NewParser().DecodeSegment(segments[1])
	if err != nil {
		return nil, false
	}
	var mapClaims jwtlib.MapClaims
	if err := json.Unmarshal(payload, &mapClaims); err != nil || mapClaims == nil {
		return nil, false
	}

	claims := &Claims{Raw: mapClaims}
	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		// exp present but not numeric
		return nil, false
	}
	if exp != nil {
		t := exp.Time
		claims.ExpiresAt = &t
	}
	return claims, true
}

// Subject returns the sub claim, if any
func (c *Claims) Subject() string {
	sub, _ := c.Raw.GetSubject()
	return sub
}
