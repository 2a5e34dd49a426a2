// Package grpcclient builds gRPC client connections authenticated through a session coordinator.
//
// Every RPC carries the coordinator's current access token as per-RPC Bearer
// credentials, so short-lived RPCs always use fresh credentials without any
// interceptor bookkeeping. Long-lived streams authenticate once at stream setup;
// use CloseOnSessionEnd (or subscribe to the coordinator's events directly) to
// drop and re-establish streams when credentials rotate or the session ends.
//
// # Quick Start
//
//	coord := session.New(ctx, "https://api.example.com/auth/refresh")
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("server.example.com:9090").
//	    WithSession(coord).
//	    WithTLS("/path/to/ca.crt", "", "", "").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	stop := grpcclient.CloseOnSessionEnd(conn, coord)
//	defer stop()
//
// Connections default to TLS 1.2+ with system roots; use WithInsecureTransport
// only in tests.
package grpcclient
