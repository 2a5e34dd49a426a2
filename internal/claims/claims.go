// Package claims extracts the remaining validity window from an access token.
//
// Tokens are treated as opaque unless they happen to be three dot-separated
// base64 segments carrying an `exp` claim, in which case the expiry is read
// without any signature verification. The server remains the authority on
// token validity; this is only a scheduling hint.
package claims

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RemainingValidity reports how long the token is still valid, based on its
// embedded `exp` claim. The second return value is false when the token is
// not a decodable three-segment token or carries no expiry; callers fall
// back to a default window in that case. Never panics.
func RemainingValidity(token string, now time.Time) (time.Duration, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return 0, false
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}

	remaining := exp.Time.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
