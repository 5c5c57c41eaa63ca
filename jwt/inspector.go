package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRefreshThreshold is the remaining lifetime below which a token is
// reported as [NearExpiry].
const DefaultRefreshThreshold = 5 * time.Minute

// Freshness is the inspector verdict for a token at a given instant.
type Freshness uint8

const (
	// Expired means the expiry instant has passed or the token could not be decoded.
	Expired Freshness = iota
	// NearExpiry means the token is still valid but should be refreshed.
	NearExpiry
	// Fresh means no action is required.
	Fresh
)

func (f Freshness) String() string {
	switch f {
	case Expired:
		return "expired"
	case NearExpiry:
		return "near_expiry"
	case Fresh:
		return "fresh"
	default:
		return "unknown"
	}
}

// unverifiedParser never checks signatures or time-based claims; IsFresh
// applies its own clock.
var unverifiedParser = jwt.NewParser(jwt.WithoutClaimsValidation())

// ExpiresAt decodes the exp claim of token without verifying its signature.
// It reports false for malformed tokens and tokens that carry no exp claim.
func ExpiresAt(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := unverifiedParser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// IsFresh classifies token at now.
//
// A token is [Expired] when now is at or past its expiry, [NearExpiry] when
// less than threshold remains, and [Fresh] otherwise. Tokens that cannot be
// decoded, or that carry no expiry, are [Expired].
func IsFresh(token string, threshold time.Duration, now time.Time) Freshness {
	exp, ok := ExpiresAt(token)
	if !ok || !now.Before(exp) {
		return Expired
	}
	if exp.Sub(now) < threshold {
		return NearExpiry
	}
	return Fresh
}
