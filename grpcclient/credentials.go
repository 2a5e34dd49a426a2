package grpcclient

import (
	"context"
	"fmt"

	"github.com/Stoyan-Iliev/go-sessionx/session"
)

// SessionCredentials implements credentials.PerRPCCredentials on top of a
// session.Coordinator: every RPC carries the current access token, and an RPC
// issued while no access token is held triggers (or joins) a refresh.
//
// Long-lived streams do not re-read credentials; subscribe to the
// coordinator's events to tear down and re-establish streams when the
// session rotates or ends.
type SessionCredentials struct {
	coordinator *session.Coordinator
	requireTLS  bool
}

// NewSessionCredentials creates per-RPC credentials over the coordinator.
// requireTLS should be true for anything but local testing.
func NewSessionCredentials(coord *session.Coordinator, requireTLS bool) *SessionCredentials {
	return &SessionCredentials{
		coordinator: coord,
		requireTLS:  requireTLS,
	}
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c *SessionCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	token := c.coordinator.AccessToken()
	if token == "" {
		var err error
		token, err = c.coordinator.Refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("grpcclient: failed to get token: %w", err)
		}
	}

	return map[string]string{"authorization": "Bearer " + token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (c *SessionCredentials) RequireTransportSecurity() bool {
	return c.requireTLS
}
