// Package probe exposes the standard grpc.health.v1 service for the checkfeed
// server.
//
// Probe resolves the health check element on the management system once per
// interval (one attempt per tick, no retries) and reports SERVING for both
// the overall server ("") and ServiceName when exactly one element resolves,
// NOT_SERVING otherwise. Until the first check completes everything reports
// NOT_SERVING. The checkfeed_upstream_up gauge follows the same result.
//
// LoggingInterceptor is a unary server interceptor that logs every call with
// its method, status code and duration.
package probe
