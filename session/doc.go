// Package session keeps an authenticated API session alive without interrupting
// in-flight or queued requests.
//
// A Coordinator holds a short-lived access token and a longer-lived refresh token,
// renews the access token shortly before it expires, renews it reactively when a
// request is rejected as unauthenticated, and guarantees that any number of
// concurrent renewal triggers collapse into a single network call whose outcome is
// fanned out to every waiter. Credential changes are published on an event bus so
// decoupled subsystems (a websocket transport, a gRPC stream) can re-authenticate
// without polling.
//
// # Features
//
//   - At most one renewal call in flight, regardless of trigger count
//   - Proactive one-shot refresh timer armed 60s before expiry (5s floor)
//   - Wake correction for suspended processes and throttled timers
//   - Terminal failure handling: clear, stop, publish Expired (no silent retry)
//   - Pluggable persistence (memory, file, Redis) via tokenstore.Store
//   - oauth2.TokenSource adapter for x/oauth2-aware clients
//   - Optional logging (WithLogger, WithLoggingEnabled)
//
// # Quick Start
//
//	coord := session.New(ctx, "https://api.example.com/auth/refresh",
//	    session.WithStore(tokenstore.NewFile(statePath)),
//	    session.WithLoggingEnabled(),
//	)
//	defer coord.Close()
//
//	// After login:
//	coord.SetTokens(loginResp.AccessToken, loginResp.RefreshToken,
//	    time.Duration(loginResp.ExpiresIn)*time.Second)
//
//	// React to session end:
//	coord.Subscribe(func(e events.Event) {
//	    if e.Type == events.Expired {
//	        promptForLogin()
//	    }
//	})
//
// # Notes
//
//   - Renewal calls use a cancellation-free context derived from the constructor
//     context, so one waiter's cancelled request cannot poison the shared outcome.
//   - A failed renewal is terminal for the session: credentials are cleared and
//     Expired is published. There is no automatic retry of a rejected refresh token.
//   - Coordinator is safe for concurrent use.
package session
