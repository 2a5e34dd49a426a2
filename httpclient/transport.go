package httpclient

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/Stoyan-Iliev/go-sessionx/session"
)

// RequestIDHeader carries the correlation ID attached to every outbound
// request. A caller-supplied value is preserved, and the retried request
// reuses the original ID so both attempts correlate in server logs.
const RequestIDHeader = "X-Request-Id"

// SessionTransport is an http.RoundTripper that attaches the current access
// token as a Bearer credential and transparently recovers from a single
// authentication failure per request.
//
// On a 401 response it asks the session Coordinator to refresh (or waits for
// the refresh already in flight) and re-sends the original request exactly
// once with the new token. A 401 on the retried request passes through
// untouched; a failed refresh is returned as the request error.
type SessionTransport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Session provides the access token and the refresh operation.
	Session *session.Coordinator
}

// NewSessionTransport creates a SessionTransport over the given coordinator.
// The base transport defaults to http.DefaultTransport if not specified.
func NewSessionTransport(coord *session.Coordinator, base http.RoundTripper) *SessionTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &SessionTransport{
		Base:    base,
		Session: coord,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *SessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Session == nil {
		return nil, fmt.Errorf("httpclient: Session is nil")
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// Clone the request to avoid modifying the original. The token is read
	// synchronously; the outbound path never waits on a refresh.
	clone := req.Clone(req.Context())
	if token := t.Session.AccessToken(); token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := clone.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		clone.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := base.RoundTrip(clone)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || !t.Session.HasRefreshToken() {
		return resp, nil
	}

	// The first attempt consumed the body; without GetBody the request
	// cannot be replayed, so the 401 stands.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	drain(resp)

	token, err := t.Session.Refresh(req.Context())
	if err != nil {
		return nil, fmt.Errorf("httpclient: refresh after 401: %w", err)
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("httpclient: rewind request body: %w", err)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)
	retry.Header.Set(RequestIDHeader, requestID)

	// Exactly one retry; whatever comes back is the final answer.
	return base.RoundTrip(retry)
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
