// Package api implements the HTTP REST API for the checkfeed server.
//
// New(src, metrics) returns an http.Handler that serves:
//
//	GET /api/v1/health                  liveness: {"status":"ok"}
//	GET /api/v1/columns                 page columns ([]types.Column)
//	GET /api/v1/arguments               required input arguments ([]types.Argument)
//	GET /api/v1/page?start=..&end=..    one page (types.Page) for the window
//
// start and end are RFC 3339 timestamps; either missing or unparsable yields
// 400. A start after end is accepted and returns an empty page. The page is
// computed fresh for every request.
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Carry an X-Request-Id header and are logged and timed
//
// No external HTTP framework is used.
package api
