package claims

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

// buildToken assembles an unsigned three-segment token with the given payload.
func buildToken(t *testing.T, payload map[string]any) string {
	t.Helper()

	header, err := json.Marshal(map[string]any{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(body) + "." + enc.EncodeToString([]byte("sig"))
}

func TestRemainingValidity(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	t.Run("FutureExpiry", func(t *testing.T) {
		token := buildToken(t, map[string]any{"exp": now.Add(900 * time.Second).Unix()})

		remaining, ok := RemainingValidity(token, now)
		if !ok {
			t.Fatal("expected expiry to be readable")
		}
		if remaining != 900*time.Second {
			t.Errorf("expected 900s remaining, got %s", remaining)
		}
	})

	t.Run("PastExpiryClampsToZero", func(t *testing.T) {
		token := buildToken(t, map[string]any{"exp": now.Add(-time.Hour).Unix()})

		remaining, ok := RemainingValidity(token, now)
		if !ok {
			t.Fatal("expected expiry to be readable")
		}
		if remaining != 0 {
			t.Errorf("expected 0 remaining, got %s", remaining)
		}
	})

	t.Run("NoExpClaim", func(t *testing.T) {
		token := buildToken(t, map[string]any{"sub": "user-1"})

		if _, ok := RemainingValidity(token, now); ok {
			t.Error("expected ok=false for token without exp")
		}
	})

	t.Run("NotThreeSegments", func(t *testing.T) {
		if _, ok := RemainingValidity("opaque-session-token", now); ok {
			t.Error("expected ok=false for opaque token")
		}
	})

	t.Run("UndecodablePayload", func(t *testing.T) {
		if _, ok := RemainingValidity("aaa.%%%.ccc", now); ok {
			t.Error("expected ok=false for undecodable payload")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if _, ok := RemainingValidity("", now); ok {
			t.Error("expected ok=false for empty token")
		}
	})
}
