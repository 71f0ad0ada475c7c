// Package upstream is the HTTP client for the management system that owns the
// health check results table.
//
//   - New(cfg, m) builds one *http.Client for the configured auth and TLS
//     settings and reuses it for every call.
//   - Elements(ctx) lists the elements running the configured protocol
//     name/version.
//   - Table(ctx, el) fetches the results table of one element, restricted to
//     the configured columns, with the index column first.
//
// Every call makes exactly one attempt. Any failure (transport, non-200
// status, undecodable body, null table) is returned wrapping ErrUnavailable so
// callers can map it to an explicit "unavailable" outcome.
package upstream
