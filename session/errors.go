package session

import "errors"

// ErrNoRefreshToken is returned when a refresh is requested but no renewal
// credential is held. Nothing to renew with; the session is over before it
// starts.
var ErrNoRefreshToken = errors.New("session: no refresh token")

// ErrRefreshRejected is returned when the renewal endpoint declines the
// renewal credential or cannot be reached. Terminal for the session: local
// credentials are cleared and an Expired event is published.
var ErrRefreshRejected = errors.New("session: refresh rejected")

// ErrMalformedRefreshResponse is returned when a nominally successful renewal
// response is missing the access or refresh token. Treated exactly like a
// rejection.
var ErrMalformedRefreshResponse = errors.New("session: malformed refresh response")
