// Package httpclient offers HTTP client construction helpers with session-backed
// authentication, transparent 401 recovery, and TLS/mTLS options.
//
// It provides a fluent Builder that can create an http.Client whose transport
// injects the current access token from a session.Coordinator, retries a request
// exactly once after a credential refresh, and keeps TLS defaults at 1.2+. A JSON
// Client wrapper unwraps the backend's {success, data, error} envelope on every
// response.
//
// # Features
//
//   - Fluent builder for http.Client with session Bearer injection
//   - Single-retry recovery from 401 via the shared refresh coordinator
//   - Envelope-aware JSON client (GetJSON, PostJSON, PutJSON, DeleteJSON)
//   - TLS 1.2+ by default, with custom CA/mTLS and optional InsecureSkipVerify
//   - Custom timeouts, base transport override, and redirect disabling
//
// # Quick Start
//
//	coord := session.New(ctx, "https://api.example.com/auth/refresh")
//
//	hc, err := httpclient.NewBuilder().
//	    WithSession(coord).
//	    WithTimeout(60 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	api := httpclient.NewClient(hc, "https://api.example.com")
//	var projects []Project
//	if err := api.GetJSON(ctx, "/projects", &projects); err != nil {
//	    log.Fatal(err)
//	}
//
// # Manual Transport Wrapping
//
//	transport := httpclient.NewSessionTransport(coord, nil)
//	client := &http.Client{Transport: transport}
//
// All components are safe for concurrent use.
package httpclient
