package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tidwall/gjson"

	"github.com/Stoyan-Iliev/go-sessionx/events"
	"github.com/Stoyan-Iliev/go-sessionx/internal/claims"
	"github.com/Stoyan-Iliev/go-sessionx/tokenstore"
)

// Logger is an interface for optional logging in Coordinator.
// Implementations can log refresh events if desired.
type Logger interface {
	Printf(format string, args ...any)
}

const (
	// DefaultTTL is assumed for an access token whose lifetime is neither
	// reported by the server nor readable from the token itself.
	DefaultTTL = 15 * time.Minute

	// DefaultRefreshBuffer is how long before expiry the proactive refresh
	// fires.
	DefaultRefreshBuffer = 60 * time.Second

	// DefaultMinTimerDelay floors the proactive timer so a short-lived token
	// never produces a zero or negative delay.
	DefaultMinTimerDelay = 5 * time.Second

	// DefaultMinRefreshInterval suppresses proactive refresh attempts that
	// start too close to the previous attempt's start.
	DefaultMinRefreshInterval = 10 * time.Second
)

// maxRenewalBody bounds how much of a renewal response is read.
const maxRenewalBody = 1 << 20

// refreshCycle is one in-flight renewal attempt. Every caller that arrives
// while the cycle is open waits on done and then reads the shared outcome;
// access and err are written exactly once, before done is closed.
type refreshCycle struct {
	done   chan struct{}
	access string
	err    error
}

// Coordinator owns the credential pair and guarantees that at most one
// renewal network call is outstanding at any time, fanning its outcome out
// to every waiting caller. It is safe for concurrent use.
//
// Construct one Coordinator per session; there is no package-level state.
type Coordinator struct {
	renewalURL string
	httpClient *http.Client
	store      tokenstore.Store
	bus        *events.Bus
	clock      clockwork.Clock
	logger     Logger
	ctx        context.Context // base context for renewal calls

	defaultTTL    time.Duration
	refreshBuffer time.Duration
	minTimerDelay time.Duration
	minInterval   time.Duration

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	cycle        *refreshCycle // non-nil while a renewal call is in flight
	lastAttempt  time.Time     // start of the most recent renewal attempt
	timer        clockwork.Timer
}

// Option is a functional option for configuring Coordinator.
type Option func(*Coordinator)

// WithLogger sets a custom logger for refresh and storage events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
// This is a convenience option that sets the logger to log.Default().
func WithLoggingEnabled() Option {
	return func(c *Coordinator) {
		c.logger = log.Default()
	}
}

// WithStore sets the persistence medium for the credential pair.
// Defaults to an in-memory store (no reload survivability).
func WithStore(store tokenstore.Store) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithHTTPClient sets the HTTP client used for renewal calls.
// Defaults to an unauthenticated client with a 30s timeout. Do not pass a
// client whose transport routes back through this Coordinator.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Coordinator) {
		c.httpClient = client
	}
}

// WithClock sets the clock used for scheduling and rate limiting.
// Intended for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// WithDefaultTTL overrides the assumed lifetime of tokens with no known expiry.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		c.defaultTTL = ttl
	}
}

// WithRefreshBuffer overrides how long before expiry the proactive refresh fires.
func WithRefreshBuffer(buffer time.Duration) Option {
	return func(c *Coordinator) {
		c.refreshBuffer = buffer
	}
}

// WithMinRefreshInterval overrides the proactive rate limit.
func WithMinRefreshInterval(interval time.Duration) Option {
	return func(c *Coordinator) {
		c.minInterval = interval
	}
}

// New creates a session Coordinator for the given renewal endpoint.
//
// Any pair already persisted in the configured store is loaded and the
// proactive refresh timer is armed from the token's own expiry claim (or the
// default TTL). Renewal calls use a context derived from ctx with
// cancellation removed, so one caller's cancelled request cannot abort a
// refresh that other callers are waiting on.
//
// Parameters:
//   - ctx: Base context for renewal calls (values preserved, cancellation dropped)
//   - renewalURL: Endpoint that exchanges a refresh token for a new pair
//   - opts: Optional configuration (WithStore, WithClock, WithLogger, ...)
func New(ctx context.Context, renewalURL string, opts ...Option) *Coordinator {
	if ctx == nil {
		ctx = context.Background()
	} else {
		ctx = context.WithoutCancel(ctx)
	}

	c := &Coordinator{
		renewalURL:    renewalURL,
		ctx:           ctx,
		defaultTTL:    DefaultTTL,
		refreshBuffer: DefaultRefreshBuffer,
		minTimerDelay: DefaultMinTimerDelay,
		minInterval:   DefaultMinRefreshInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.store == nil {
		c.store = tokenstore.NewMemory()
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}

	busOpts := []events.Option{}
	if c.logger != nil {
		busOpts = append(busOpts, events.WithLogger(c.logger))
	}
	c.bus = events.NewBus(busOpts...)

	if pair := c.store.Read(); pair.RefreshToken != "" {
		c.mu.Lock()
		c.accessToken = pair.AccessToken
		c.refreshToken = pair.RefreshToken
		c.armTimerLocked(c.resolveTTLLocked(pair.AccessToken, 0))
		c.mu.Unlock()
	}

	return c
}

// AccessToken returns the current access credential, or "" when logged out.
// Never blocks on a refresh; callers that need a guaranteed-fresh token
// should use TokenSource or rely on the request pipeline's retry.
func (c *Coordinator) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// HasRefreshToken reports whether a renewal credential is held.
func (c *Coordinator) HasRefreshToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken != ""
}

// Subscribe registers a listener for credential events and returns its
// unsubscribe function.
func (c *Coordinator) Subscribe(listener func(events.Event)) (unsubscribe func()) {
	return c.bus.Subscribe(listener)
}

// SetTokens installs a new credential pair, typically after login.
//
// The pair replaces any previous one atomically, is persisted, the proactive
// refresh timer is armed (expiresIn hint, else the token's exp claim, else
// the default TTL), and a Refreshed event is published.
func (c *Coordinator) SetTokens(access, refresh string, expiresIn time.Duration) {
	c.mu.Lock()
	c.accessToken = access
	c.refreshToken = refresh
	c.armTimerLocked(c.resolveTTLLocked(access, expiresIn))
	c.store.Write(tokenstore.Pair{AccessToken: access, RefreshToken: refresh})
	c.mu.Unlock()

	c.bus.Publish(events.Event{Type: events.Refreshed, AccessToken: access})
}

// Refresh exchanges the renewal credential for a new pair, or waits for the
// exchange already in flight.
//
// Any number of concurrent callers collapse into a single renewal network
// call; every caller observes the same new access token or the same error.
// On success the new pair is persisted and a Refreshed event published; on
// failure the session is terminated (credentials cleared, timer stopped,
// Expired published) and all callers receive the failure.
//
// Returns:
//   - string: The access token produced by the renewal cycle
//   - error: ErrNoRefreshToken, ErrRefreshRejected, ErrMalformedRefreshResponse,
//     or ctx.Err() if ctx ends while waiting on another caller's cycle
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.refresh(ctx, false)
}

// refresh is the single entry point for both reactive (pipeline) and
// proactive (timer, Wake) triggers. Proactive attempts are suppressed when
// they start within minInterval of the previous attempt's start; reactive
// attempts never are.
func (c *Coordinator) refresh(ctx context.Context, proactive bool) (string, error) {
	c.mu.Lock()

	// Fold into the in-flight cycle, if any. Whoever took the Idle state
	// first owns the network call; everyone else shares its outcome.
	if cycle := c.cycle; cycle != nil {
		c.mu.Unlock()
		select {
		case <-cycle.done:
			return cycle.access, cycle.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if c.refreshToken == "" {
		c.mu.Unlock()
		return "", ErrNoRefreshToken
	}

	now := c.clock.Now()
	if proactive && !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.minInterval {
		access := c.accessToken
		elapsed := now.Sub(c.lastAttempt)
		c.mu.Unlock()
		c.logf("session: proactive refresh skipped, last attempt %s ago", elapsed)
		return access, nil
	}

	cycle := &refreshCycle{done: make(chan struct{})}
	c.cycle = cycle
	c.lastAttempt = now
	refreshToken := c.refreshToken
	c.mu.Unlock()

	access, refresh, ttl, err := c.exchange(refreshToken)

	var event events.Event
	c.mu.Lock()
	c.cycle = nil
	if err == nil {
		c.accessToken = access
		c.refreshToken = refresh
		c.armTimerLocked(ttl)
		c.store.Write(tokenstore.Pair{AccessToken: access, RefreshToken: refresh})
		cycle.access = access
		event = events.Event{Type: events.Refreshed, AccessToken: access}
		c.logf("session: refreshed credentials, next refresh in %s", c.fireDelay(ttl))
	} else {
		c.accessToken = ""
		c.refreshToken = ""
		c.stopTimerLocked()
		c.store.Clear()
		cycle.err = err
		event = events.Event{Type: events.Expired}
		c.logf("session: refresh failed, session ended: %v", err)
	}
	c.mu.Unlock()

	c.bus.Publish(event)
	close(cycle.done)

	return cycle.access, cycle.err
}

// exchange performs the single renewal network call. It runs without the
// coordinator lock held and uses the coordinator's base context so it cannot
// be aborted by any individual waiter.
func (c *Coordinator) exchange(refreshToken string) (access, refresh string, ttl time.Duration, err error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: encode request: %v", ErrRefreshRejected, err)
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, c.renewalURL, bytes.NewReader(body))
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: build request: %v", ErrRefreshRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRenewalBody))
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: read response: %v", ErrRefreshRejected, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", 0, fmt.Errorf("%w: status %d", ErrRefreshRejected, resp.StatusCode)
	}

	payload := raw
	// The backend may wrap every response in a {success, data} envelope.
	if success := gjson.GetBytes(raw, "success"); success.Exists() {
		if !success.Bool() {
			msg := gjson.GetBytes(raw, "error").String()
			if msg == "" {
				msg = gjson.GetBytes(raw, "message").String()
			}
			return "", "", 0, fmt.Errorf("%w: %s", ErrRefreshRejected, msg)
		}
		payload = []byte(gjson.GetBytes(raw, "data").Raw)
	}

	access = gjson.GetBytes(payload, "accessToken").String()
	refresh = gjson.GetBytes(payload, "refreshToken").String()
	if access == "" || refresh == "" {
		return "", "", 0, ErrMalformedRefreshResponse
	}

	if expiresIn := gjson.GetBytes(payload, "expiresIn"); expiresIn.Exists() && expiresIn.Int() > 0 {
		ttl = time.Duration(expiresIn.Int()) * time.Second
	} else if remaining, ok := claims.RemainingValidity(access, c.clock.Now()); ok && remaining > 0 {
		ttl = remaining
	} else {
		ttl = c.defaultTTL
	}

	return access, refresh, ttl, nil
}

// Logout clears the credential pair and persisted state, stops the proactive
// timer, and publishes a Cleared event. Idempotent.
func (c *Coordinator) Logout() {
	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.stopTimerLocked()
	c.store.Clear()
	c.mu.Unlock()

	c.bus.Publish(events.Event{Type: events.Cleared})
}

// Close stops the proactive refresh timer without touching credentials.
// Call when tearing down a Coordinator that should not fire again.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

// resolveTTLLocked picks the token lifetime: the explicit hint, the token's
// own exp claim, then the hard default. Callers hold c.mu.
func (c *Coordinator) resolveTTLLocked(access string, expiresIn time.Duration) time.Duration {
	if expiresIn > 0 {
		return expiresIn
	}
	if remaining, ok := claims.RemainingValidity(access, c.clock.Now()); ok && remaining > 0 {
		return remaining
	}
	return c.defaultTTL
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
