// Package config loads and watches the checkfeed configuration file
// (config.yaml).
//
// Top-level types:
//   - Config{Server, Upstream, Stream, Probe}: full tree parsed from YAML
//   - ServerConfig: http_port, grpc_port, log_level
//   - UpstreamConfig: endpoint, timeout, timezone, protocol, include_stopped,
//     table{parameter_id, columns, force_full_table}, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none); Key(), Token() and
//     Password() resolve secrets from environment variables
//   - StreamConfig, ProbeConfig: WebSocket stream and gRPC probe cadence
//
// Load(path) reads the YAML file, applies defaults (ports 8080/50051, 10s
// upstream timeout, table 2000, 30s stream and probe intervals, 24h stream
// window), then validates. Validation reports every problem at once.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It re-adds the watch after each
// reload so atomic-save editors keep working.
package config
