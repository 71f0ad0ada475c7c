package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultGRPCPort        = 50051
	DefaultHTTPPort        = 8080
	DefaultLogLevel        = "info"
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultTimezone        = "Local"
	DefaultProtocolName    = "Skyline Health Check Manager"
	DefaultProtocolVersion = "Production"
	DefaultTableID         = 2000
	DefaultStreamInterval  = 30 * time.Second
	DefaultStreamWindow    = 24 * time.Hour
	DefaultProbeInterval   = 30 * time.Second
)

// DefaultTableColumns are the parameter ids of name, result, failure rate,
// result date, success count and failure count. The index column is always
// returned first and is not listed.
var DefaultTableColumns = []int{2002, 2003, 2004, 2006, 2007, 2008}

// tableColumnCount is the number of non-index columns the results table needs.
const tableColumnCount = 6

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Stream   StreamConfig   `yaml:"stream"`
	Probe    ProbeConfig    `yaml:"probe"`
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC health service listens on.
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API, WebSocket stream and /metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`
}

// Level returns the parsed log level, or info if LogLevel is not valid.
func (s ServerConfig) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// UpstreamConfig describes the management system that owns the health check
// results table.
type UpstreamConfig struct {
	// Endpoint is the base URL of the management system's REST API.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds every request (one attempt, no retries).
	Timeout time.Duration `yaml:"timeout"`

	// Timezone is the IANA name of the location the result dates are recorded
	// in. "Local" uses the server's local time zone.
	Timezone string `yaml:"timezone"`

	// Protocol identifies the health check element.
	Protocol ProtocolConfig `yaml:"protocol"`

	// IncludeStopped also matches elements that are not running.
	IncludeStopped bool `yaml:"include_stopped"`

	Table TableConfig `yaml:"table"`
	Auth  AuthConfig  `yaml:"auth"`
	TLS   TLSConfig   `yaml:"tls"`
}

// Location resolves Timezone.
func (u UpstreamConfig) Location() (*time.Location, error) {
	if u.Timezone == "" || u.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return nil, fmt.Errorf("upstream.timezone: %w", err)
	}
	return loc, nil
}

// ProtocolConfig is the protocol name and version of the health check element.
type ProtocolConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// TableConfig selects the results table and its columns.
type TableConfig struct {
	// ParameterID is the id of the results table.
	ParameterID int `yaml:"parameter_id"`

	// Columns lists the six non-index column ids in decode order.
	Columns []int `yaml:"columns"`

	// ForceFullTable asks the management system for every row, not a page.
	ForceFullTable bool `yaml:"force_full_table"`
}

// AuthConfig specifies how requests to the management system authenticate.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// Header is the HTTP header name the API key is sent in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth user name.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns the configured API key header, or "X-Api-Key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "X-Api-Key"
}

// TLSConfig holds TLS dial options for the management system.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// CAFile is an optional PEM bundle used instead of the system roots.
	CAFile string `yaml:"ca_file"`
}

// StreamConfig controls the WebSocket rolling-window stream.
type StreamConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval is how often a fresh page is broadcast.
	Interval time.Duration `yaml:"interval"`

	// Window is the length of the rolling [now-window, now] range.
	Window time.Duration `yaml:"window"`
}

// ProbeConfig controls the gRPC health probe.
type ProbeConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, applying defaults and validation.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			LogLevel: DefaultLogLevel,
		},
		Upstream: UpstreamConfig{
			Timeout:  DefaultUpstreamTimeout,
			Timezone: DefaultTimezone,
			Protocol: ProtocolConfig{
				Name:    DefaultProtocolName,
				Version: DefaultProtocolVersion,
			},
			Table: TableConfig{
				ParameterID:    DefaultTableID,
				Columns:        append([]int(nil), DefaultTableColumns...),
				ForceFullTable: true,
			},
		},
		Stream: StreamConfig{
			Enabled:  true,
			Interval: DefaultStreamInterval,
			Window:   DefaultStreamWindow,
		},
		Probe: ProbeConfig{
			Interval: DefaultProbeInterval,
		},
	}
}

// validate checks required fields and structural constraints. Every problem
// found is reported, not just the first.
func validate(cfg *Config) error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Server.GRPCPort <= 0 || cfg.Server.GRPCPort > 65535 {
		add("server.grpc_port %d is out of range [1, 65535]", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		add("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		add("server.log_level %q unknown: want debug|info|warn|error", cfg.Server.LogLevel)
	}

	up := cfg.Upstream
	if up.Endpoint == "" {
		add("upstream.endpoint is required")
	} else if u, err := url.Parse(up.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		add("upstream.endpoint %q is not an absolute URL", up.Endpoint)
	}
	if up.Timeout <= 0 {
		add("upstream.timeout must be positive")
	}
	if _, err := up.Location(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if up.Protocol.Name == "" {
		add("upstream.protocol.name is required")
	}
	if up.Table.ParameterID <= 0 {
		add("upstream.table.parameter_id must be positive")
	}
	if len(up.Table.Columns) != tableColumnCount {
		add("upstream.table.columns: got %d ids, want %d", len(up.Table.Columns), tableColumnCount)
	}
	switch up.Auth.Mode {
	case "mtls":
		if up.Auth.CertFile == "" || up.Auth.KeyFile == "" {
			add("upstream.auth: mtls requires cert_file and key_file")
		}
	case "apikey", "bearer", "basic", "none", "":
	default:
		add("upstream.auth.mode %q unknown: want mtls|apikey|bearer|basic|none", up.Auth.Mode)
	}

	if cfg.Stream.Enabled {
		if cfg.Stream.Interval <= 0 {
			add("stream.interval must be positive")
		}
		if cfg.Stream.Window <= 0 {
			add("stream.window must be positive")
		}
	}
	if cfg.Probe.Interval <= 0 {
		add("probe.interval must be positive")
	}
	return errs
}
