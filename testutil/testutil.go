package testutil

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()

	tb.Cleanup(server.Close)
	return server
}

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// StaticJSONResponse returns a RoundTripper that always responds with the provided JSON body.
func StaticJSONResponse(body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

// RenewalServer simulates the token renewal endpoint. It counts calls, which
// is how tests assert the at-most-one-renewal invariant, and serves whatever
// handler is currently installed.
type RenewalServer struct {
	*httptest.Server

	mu      sync.Mutex
	calls   int
	handler http.HandlerFunc
}

// NewRenewalServer starts a renewal endpoint on an IPv4 loopback listener.
// If handler is nil it serves RenewalSuccess("mock-access", "mock-refresh", 900).
func NewRenewalServer(tb testing.TB, handler http.HandlerFunc) *RenewalServer {
	tb.Helper()

	s := &RenewalServer{handler: handler}
	if s.handler == nil {
		s.handler = RenewalSuccess("mock-access", "mock-refresh", 900)
	}

	s.Server = NewLocalHTTPServer(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls++
		h := s.handler
		s.mu.Unlock()
		h(w, r)
	}))

	return s
}

// Calls reports how many renewal requests the server has received.
func (s *RenewalServer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// SetHandler swaps the response handler for subsequent requests.
func (s *RenewalServer) SetHandler(handler http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// RenewalSuccess responds with a fresh credential pair.
func RenewalSuccess(access, refresh string, expiresIn int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"accessToken":%q,"refreshToken":%q,"expiresIn":%d}`, access, refresh, expiresIn)
	}
}

// RenewalSuccessEnveloped responds with a pair wrapped in the generic
// {success, data} envelope.
func RenewalSuccessEnveloped(access, refresh string, expiresIn int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"data":{"accessToken":%q,"refreshToken":%q,"expiresIn":%d}}`,
			access, refresh, expiresIn)
	}
}

// RenewalFailure responds with the given HTTP status and body.
func RenewalFailure(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}
