// Package ws implements the WebSocket stream of the checkfeed server.
//
// Hub manages a set of connected clients and broadcasts the page for a
// rolling window [now-window, now] to all of them every interval. Each tick
// runs a fresh aggregation through the PageSource; ticks with no connected
// clients are skipped so the management system is not polled for nobody.
//
// New(src, interval, window) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker; it blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// page immediately on connect, then streams updates on each tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "page",
//	  "start": "2026-10-16T09:00:00Z",
//	  "end":   "2026-10-17T09:00:00Z",
//	  "data":  { /* same schema as GET /api/v1/page */ }
//	}
//
// The upgrader accepts all origins. The server mounts the hub at /ws/stream.
package ws
