package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"

	"github.com/Stoyan-Iliev/go-sessionx/events"
	"github.com/Stoyan-Iliev/go-sessionx/testutil"
	"github.com/Stoyan-Iliev/go-sessionx/tokenstore"
)

// collectEvents subscribes a buffered channel to the coordinator's bus.
func collectEvents(tb testing.TB, c *Coordinator) <-chan events.Event {
	tb.Helper()

	ch := make(chan events.Event, 16)
	unsubscribe := c.Subscribe(func(e events.Event) { ch <- e })
	tb.Cleanup(unsubscribe)
	return ch
}

func waitEvent(tb testing.TB, ch <-chan events.Event, want events.Type) events.Event {
	tb.Helper()

	select {
	case e := <-ch:
		if e.Type != want {
			tb.Fatalf("expected %s event, got %s", want, e.Type)
		}
		return e
	case <-time.After(5 * time.Second):
		tb.Fatalf("timed out waiting for %s event", want)
		return events.Event{}
	}
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	server := testutil.NewRenewalServer(t, nil)
	coord := New(context.Background(), server.URL)
	defer coord.Close()

	_, err := coord.Refresh(context.Background())
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if server.Calls() != 0 {
		t.Errorf("expected no renewal call, got %d", server.Calls())
	}
}

func TestRefresh_Success(t *testing.T) {
	var gotRefreshToken string
	server := testutil.NewRenewalServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotRefreshToken = gjson.GetBytes(body, "refreshToken").String()
		testutil.RenewalSuccess("a2", "r2", 900)(w, r)
	})

	store := tokenstore.NewMemory()
	coord := New(context.Background(), server.URL, WithStore(store))
	defer coord.Close()
	ch := collectEvents(t, coord)

	coord.SetTokens("a1", "r1", 900*time.Second)
	waitEvent(t, ch, events.Refreshed)

	access, err := coord.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if access != "a2" {
		t.Errorf("expected access token a2, got %q", access)
	}
	if gotRefreshToken != "r1" {
		t.Errorf("expected renewal call with r1, got %q", gotRefreshToken)
	}
	if coord.AccessToken() != "a2" {
		t.Errorf("coordinator should hold a2, got %q", coord.AccessToken())
	}

	e := waitEvent(t, ch, events.Refreshed)
	if e.AccessToken != "a2" {
		t.Errorf("Refreshed event should carry a2, got %q", e.AccessToken)
	}

	pair := store.Read()
	if pair.AccessToken != "a2" || pair.RefreshToken != "r2" {
		t.Errorf("store should hold the new pair, got %+v", pair)
	}
}

func TestRefresh_EnvelopedResponse(t *testing.T) {
	server := testutil.NewRenewalServer(t, testutil.RenewalSuccessEnveloped("a2", "r2", 900))
	coord := New(context.Background(), server.URL)
	defer coord.Close()

	coord.SetTokens("a1", "r1", 900*time.Second)

	access, err := coord.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if access != "a2" {
		t.Errorf("expected a2, got %q", access)
	}
}

// TestRefresh_ConcurrentCallersShareOneCall pins the core invariant: N
// concurrent triggers produce exactly one renewal network call, and every
// caller observes the same outcome.
func TestRefresh_ConcurrentCallersShareOneCall(t *testing.T) {
	const waiters = 8

	received := make(chan struct{})
	release := make(chan struct{})
	server := testutil.NewRenewalServer(t, func(w http.ResponseWriter, r *http.Request) {
		close(received)
		<-release
		testutil.RenewalSuccess("a2", "r2", 900)(w, r)
	})

	coord := New(context.Background(), server.URL)
	defer coord.Close()
	coord.SetTokens("a1", "r1", 900*time.Second)

	results := make(chan string, waiters)
	errs := make(chan error, waiters)

	// First caller opens the cycle and blocks inside the renewal call.
	go func() {
		access, err := coord.Refresh(context.Background())
		results <- access
		errs <- err
	}()
	<-received

	// Everyone else must fold into the same cycle.
	var wg sync.WaitGroup
	for i := 1; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			access, err := coord.Refresh(context.Background())
			results <- access
			errs <- err
		}()
	}

	close(release)
	wg.Wait()

	for i := 0; i < waiters; i++ {
		if access := <-results; access != "a2" {
			t.Errorf("caller %d: expected a2, got %q", i, access)
		}
		if err := <-errs; err != nil {
			t.Errorf("caller %d: unexpected error: %v", i, err)
		}
	}
	if server.Calls() != 1 {
		t.Errorf("expected exactly 1 renewal call, got %d", server.Calls())
	}
}

func TestRefresh_FailureIsTerminal(t *testing.T) {
	server := testutil.NewRenewalServer(t, testutil.RenewalFailure(http.StatusUnauthorized, `{"success":false,"error":"invalid refresh token"}`))

	store := tokenstore.NewMemory()
	coord := New(context.Background(), server.URL, WithStore(store))
	defer coord.Close()
	ch := collectEvents(t, coord)

	coord.SetTokens("a1", "r1", 900*time.Second)
	waitEvent(t, ch, events.Refreshed)

	_, err := coord.Refresh(context.Background())
	if !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected, got %v", err)
	}

	waitEvent(t, ch, events.Expired)

	if coord.AccessToken() != "" {
		t.Error("access token should be cleared after terminal failure")
	}
	if coord.HasRefreshToken() {
		t.Error("refresh token should be cleared after terminal failure")
	}
	if pair := store.Read(); !pair.Empty() {
		t.Errorf("store should be cleared, got %+v", pair)
	}

	// The session is over; another refresh has nothing to work with.
	if _, err := coord.Refresh(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("expected ErrNoRefreshToken after terminal failure, got %v", err)
	}
}

func TestRefresh_FailureFansOutToAllWaiters(t *testing.T) {
	const waiters = 5

	received := make(chan struct{})
	release := make(chan struct{})
	server := testutil.NewRenewalServer(t, func(w http.ResponseWriter, r *http.Request) {
		close(received)
		<-release
		testutil.RenewalFailure(http.StatusUnauthorized, `{}`)(w, r)
	})

	coord := New(context.Background(), server.URL)
	defer coord.Close()
	coord.SetTokens("a1", "r1", 900*time.Second)

	errs := make(chan error, waiters)
	go func() {
		_, err := coord.Refresh(context.Background())
		errs <- err
	}()
	<-received

	var wg sync.WaitGroup
	for i := 1; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coord.Refresh(context.Background())
			errs <- err
		}()
	}
	close(release)
	wg.Wait()

	for i := 0; i < waiters; i++ {
		if err := <-errs; !errors.Is(err, ErrRefreshRejected) {
			t.Errorf("waiter %d: expected ErrRefreshRejected, got %v", i, err)
		}
	}
	if server.Calls() != 1 {
		t.Errorf("expected exactly 1 renewal call, got %d", server.Calls())
	}
}

func TestRefresh_MalformedResponse(t *testing.T) {
	// Nominally successful response missing the refresh token.
	server := testutil.NewRenewalServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"accessToken":"a2"}`)
	})

	coord := New(context.Background(), server.URL)
	defer coord.Close()
	ch := collectEvents(t, coord)
	coord.SetTokens("a1", "r1", 900*time.Second)
	waitEvent(t, ch, events.Refreshed)

	_, err := coord.Refresh(context.Background())
	if !errors.Is(err, ErrMalformedRefreshResponse) {
		t.Fatalf("expected ErrMalformedRefreshResponse, got %v", err)
	}

	// Protocol violations are handled exactly like rejections.
	waitEvent(t, ch, events.Expired)
	if coord.HasRefreshToken() {
		t.Error("refresh token should be cleared after malformed response")
	}
}

func TestRefresh_WaiterHonorsContext(t *testing.T) {
	received := make(chan struct{})
	release := make(chan struct{})
	server := testutil.NewRenewalServer(t, func(w http.ResponseWriter, r *http.Request) {
		close(received)
		<-release
		testutil.RenewalSuccess("a2", "r2", 900)(w, r)
	})

	coord := New(context.Background(), server.URL)
	defer coord.Close()
	coord.SetTokens("a1", "r1", 900*time.Second)

	firstDone := make(chan error, 1)
	go func() {
		_, err := coord.Refresh(context.Background())
		firstDone <- err
	}()
	<-received

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := coord.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled for cancelled waiter, got %v", err)
	}

	// The cancelled waiter must not have aborted the shared cycle.
	close(release)
	if err := <-firstDone; err != nil {
		t.Errorf("original caller should still succeed, got %v", err)
	}
	if coord.AccessToken() != "a2" {
		t.Errorf("expected a2 after cycle, got %q", coord.AccessToken())
	}
}

func TestLogout_Idempotent(t *testing.T) {
	server := testutil.NewRenewalServer(t, nil)
	store := tokenstore.NewMemory()
	coord := New(context.Background(), server.URL, WithStore(store))
	defer coord.Close()
	ch := collectEvents(t, coord)

	coord.SetTokens("a1", "r1", 900*time.Second)
	waitEvent(t, ch, events.Refreshed)

	coord.Logout()
	waitEvent(t, ch, events.Cleared)
	coord.Logout() // second logout must not fail

	if coord.AccessToken() != "" || coord.HasRefreshToken() {
		t.Error("credentials should be cleared after logout")
	}
	if pair := store.Read(); !pair.Empty() {
		t.Errorf("store should be empty after logout, got %+v", pair)
	}
	if _, err := coord.Refresh(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("expected ErrNoRefreshToken after logout, got %v", err)
	}
}

func TestNew_LoadsPersistedPair(t *testing.T) {
	server := testutil.NewRenewalServer(t, nil)

	store := tokenstore.NewMemory()
	store.Write(tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"})

	coord := New(context.Background(), server.URL, WithStore(store))
	defer coord.Close()

	if coord.AccessToken() != "a1" {
		t.Errorf("expected persisted access token a1, got %q", coord.AccessToken())
	}
	if !coord.HasRefreshToken() {
		t.Error("expected persisted refresh token to be loaded")
	}
}

func TestTokenSource(t *testing.T) {
	t.Run("FreshTokenServedWithoutNetwork", func(t *testing.T) {
		server := testutil.NewRenewalServer(t, nil)
		coord := New(context.Background(), server.URL)
		defer coord.Close()
		coord.SetTokens("a1", "r1", 900*time.Second)

		token, err := coord.TokenSource().Token()
		if err != nil {
			t.Fatalf("Token failed: %v", err)
		}
		if token.AccessToken != "a1" {
			t.Errorf("expected a1, got %q", token.AccessToken)
		}
		if server.Calls() != 0 {
			t.Errorf("expected no renewal call, got %d", server.Calls())
		}
	})

	t.Run("NearExpiryRefreshes", func(t *testing.T) {
		server := testutil.NewRenewalServer(t, testutil.RenewalSuccess("a2", "r2", 900))
		coord := New(context.Background(), server.URL)
		defer coord.Close()
		// 30s left is inside the 60s refresh buffer.
		coord.SetTokens("a1", "r1", 30*time.Second)

		token, err := coord.TokenSource().Token()
		if err != nil {
			t.Fatalf("Token failed: %v", err)
		}
		if token.AccessToken != "a2" {
			t.Errorf("expected refreshed token a2, got %q", token.AccessToken)
		}
		if server.Calls() != 1 {
			t.Errorf("expected 1 renewal call, got %d", server.Calls())
		}
	})

	t.Run("LoggedOut", func(t *testing.T) {
		server := testutil.NewRenewalServer(t, nil)
		coord := New(context.Background(), server.URL)
		defer coord.Close()

		if _, err := coord.TokenSource().Token(); !errors.Is(err, ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})
}

func TestSetTokens_ExpiresInFallsBackToDefault(t *testing.T) {
	server := testutil.NewRenewalServer(t, nil)
	clock := clockwork.NewFakeClock()
	coord := New(context.Background(), server.URL, WithClock(clock))
	defer coord.Close()

	// Opaque token, no hint: the default TTL applies.
	coord.SetTokens("opaque-a1", "r1", 0)

	coord.mu.Lock()
	expiresAt := coord.expiresAt
	coord.mu.Unlock()

	if want := clock.Now().Add(DefaultTTL); !expiresAt.Equal(want) {
		t.Errorf("expected expiry %s, got %s", want, expiresAt)
	}
}
