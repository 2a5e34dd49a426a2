// Package events provides a minimal synchronous pub/sub bus for session credential changes.
//
// Subsystems holding long-lived authenticated state (a websocket transport, a gRPC
// stream) subscribe to learn when credentials rotate or the session ends, instead of
// polling the token store.
//
// # Quick Start
//
//	unsubscribe := bus.Subscribe(func(e events.Event) {
//	    switch e.Type {
//	    case events.Refreshed:
//	        transport.Reauthenticate(e.AccessToken)
//	    case events.Expired, events.Cleared:
//	        transport.Disconnect()
//	    }
//	})
//	defer unsubscribe()
//
// Listeners run synchronously on the publisher's goroutine and are isolated from
// one another: a panicking listener never blocks the rest.
package events
