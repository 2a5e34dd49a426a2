// Package testutil provides test helpers for go-sessionx packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in
// sandboxes), simulate the token renewal endpoint with call counting, and inline
// http.RoundTripper implementations.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - RenewalServer: stub renewal endpoint that counts calls and swaps handlers
//   - RenewalSuccess / RenewalSuccessEnveloped / RenewalFailure: canned responses
//   - RoundTripFunc and StaticJSONResponse: inline http.RoundTripper implementations
//
// These helpers are designed for tests only.
package testutil
