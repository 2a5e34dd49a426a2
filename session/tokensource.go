package session

import (
	"golang.org/x/oauth2"
)

// tokenSource adapts a Coordinator to the oauth2.TokenSource interface so
// the coordinator can feed any x/oauth2-aware client.
type tokenSource struct {
	c *Coordinator
}

// TokenSource returns an oauth2.TokenSource view of the coordinator.
//
// Token returns the current access token while it is comfortably inside its
// validity window and refreshes through the coordinator otherwise, so it
// participates in the same at-most-one-renewal guarantee as everything else.
func (c *Coordinator) TokenSource() oauth2.TokenSource {
	return &tokenSource{c: c}
}

// Token implements oauth2.TokenSource.
func (ts *tokenSource) Token() (*oauth2.Token, error) {
	c := ts.c

	c.mu.Lock()
	access := c.accessToken
	expiresAt := c.expiresAt
	fresh := access != "" &&
		(expiresAt.IsZero() || c.clock.Now().Add(c.refreshBuffer).Before(expiresAt))
	c.mu.Unlock()

	if fresh {
		return &oauth2.Token{AccessToken: access, TokenType: "Bearer", Expiry: expiresAt}, nil
	}

	access, err := c.Refresh(c.ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	expiresAt = c.expiresAt
	c.mu.Unlock()

	return &oauth2.Token{AccessToken: access, TokenType: "Bearer", Expiry: expiresAt}, nil
}
