package tokenstore

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, "sessionx:test")
}

func TestRedis_ReadEmpty(t *testing.T) {
	store := newTestRedis(t)

	if pair := store.Read(); !pair.Empty() {
		t.Errorf("expected empty pair, got %+v", pair)
	}
}

func TestRedis_WriteRead(t *testing.T) {
	store := newTestRedis(t)
	store.Write(Pair{AccessToken: "a1", RefreshToken: "r1"})

	pair := store.Read()
	if pair.AccessToken != "a1" || pair.RefreshToken != "r1" {
		t.Errorf("unexpected pair: %+v", pair)
	}
}

func TestRedis_ClearIdempotent(t *testing.T) {
	store := newTestRedis(t)
	store.Write(Pair{AccessToken: "a1", RefreshToken: "r1"})

	store.Clear()
	store.Clear()

	if pair := store.Read(); !pair.Empty() {
		t.Errorf("expected empty pair after clear, got %+v", pair)
	}
}

func TestRedis_UnavailableReadsEmpty(t *testing.T) {
	// Point at a port nothing listens on; the store must degrade, not fail.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedis(client, "sessionx:test", WithRedisTimeout(100*time.Millisecond))

	store.Write(Pair{AccessToken: "a1", RefreshToken: "r1"})
	if pair := store.Read(); !pair.Empty() {
		t.Errorf("expected empty pair from unavailable redis, got %+v", pair)
	}
	store.Clear()
}
