// Package metrics holds the Prometheus collectors exported by the checkfeed
// server on /metrics.
//
// Collectors live on a private registry so tests and multiple servers in one
// process never collide. All methods are safe on a nil *Metrics, which lets
// packages take an optional metrics dependency without branching.
//
//	checkfeed_pages_total{outcome}                      pages served by outcome
//	checkfeed_rows_skipped_total                        rows dropped for bad dates
//	checkfeed_upstream_request_duration_seconds{op,outcome}
//	checkfeed_upstream_up                               1 when exactly one element resolves
//	checkfeed_http_request_duration_seconds{status,path}
package metrics
