package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"
)

const minimalYAML = `
upstream:
  endpoint: "https://dms.example.com"
`

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, minimalYAML)

	if cfg.Server.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", cfg.Server.GRPCPort, DefaultGRPCPort)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.Level() != slog.LevelInfo {
		t.Errorf("log level: got %v, want info", cfg.Server.Level())
	}
	up := cfg.Upstream
	if up.Timeout != DefaultUpstreamTimeout {
		t.Errorf("upstream.timeout: got %v, want %v", up.Timeout, DefaultUpstreamTimeout)
	}
	if up.Protocol.Name != DefaultProtocolName || up.Protocol.Version != DefaultProtocolVersion {
		t.Errorf("upstream.protocol: got %+v", up.Protocol)
	}
	if up.IncludeStopped {
		t.Error("upstream.include_stopped: got true, want false")
	}
	if up.Table.ParameterID != DefaultTableID || !up.Table.ForceFullTable {
		t.Errorf("upstream.table: got %+v", up.Table)
	}
	if diff := cmp.Diff(DefaultTableColumns, up.Table.Columns); diff != "" {
		t.Errorf("upstream.table.columns mismatch (-want +got):\n%s", diff)
	}
	if loc, err := up.Location(); err != nil || loc != time.Local {
		t.Errorf("Location() = %v, %v; want Local", loc, err)
	}
	if !cfg.Stream.Enabled || cfg.Stream.Interval != DefaultStreamInterval || cfg.Stream.Window != DefaultStreamWindow {
		t.Errorf("stream: got %+v", cfg.Stream)
	}
	if cfg.Probe.Interval != DefaultProbeInterval {
		t.Errorf("probe.interval: got %v, want %v", cfg.Probe.Interval, DefaultProbeInterval)
	}
}

func TestLoad_Full(t *testing.T) {
	yaml := `
server:
  http_port: 9080
  grpc_port: 9051
  log_level: debug
upstream:
  endpoint: "https://dms.example.com"
  timeout: 3s
  timezone: "Europe/Brussels"
  protocol: { name: "Custom HC", version: "1.0.0.1" }
  include_stopped: true
  table: { parameter_id: 3000, columns: [1, 2, 3, 4, 5, 6], force_full_table: false }
  auth: { mode: bearer, token_env: HC_TOKEN }
  tls: { insecure_skip_verify: true, ca_file: "/etc/ca.pem" }
stream:
  enabled: false
probe:
  interval: 5s
`
	cfg := loadFromString(t, yaml)

	if cfg.Server.HTTPPort != 9080 || cfg.Server.GRPCPort != 9051 {
		t.Errorf("ports: got %d/%d", cfg.Server.HTTPPort, cfg.Server.GRPCPort)
	}
	if cfg.Server.Level() != slog.LevelDebug {
		t.Errorf("log level: got %v, want debug", cfg.Server.Level())
	}
	up := cfg.Upstream
	if up.Timeout != 3*time.Second {
		t.Errorf("timeout: got %v", up.Timeout)
	}
	loc, err := up.Location()
	if err != nil {
		t.Fatalf("Location(): %v", err)
	}
	if loc.String() != "Europe/Brussels" {
		t.Errorf("Location(): got %v", loc)
	}
	if up.Protocol.Name != "Custom HC" || !up.IncludeStopped {
		t.Errorf("protocol/include_stopped: got %+v / %v", up.Protocol, up.IncludeStopped)
	}
	if up.Table.ParameterID != 3000 || up.Table.ForceFullTable {
		t.Errorf("table: got %+v", up.Table)
	}
	if up.Auth.Mode != "bearer" || !up.TLS.InsecureSkipVerify || up.TLS.CAFile != "/etc/ca.pem" {
		t.Errorf("auth/tls: got %+v / %+v", up.Auth, up.TLS)
	}
	if cfg.Stream.Enabled {
		t.Error("stream.enabled: got true, want false")
	}
	if cfg.Probe.Interval != 5*time.Second {
		t.Errorf("probe.interval: got %v", cfg.Probe.Interval)
	}
}

func TestLoad_MissingEndpoint(t *testing.T) {
	_, err := loadStringErr(t, "server:\n  http_port: 8081\n")
	if err == nil {
		t.Fatal("expected error for missing upstream.endpoint, got nil")
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	yaml := `
server:
  grpc_port: 0
  log_level: loud
upstream:
  endpoint: "dms.example.com"
  timezone: "Mars/Olympus_Mons"
  table: { columns: [2002, 2003] }
  auth: { mode: magictoken }
probe:
  interval: -1s
`
	_, err := loadStringErr(t, yaml)
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}
	for _, want := range []string{
		"server.grpc_port",
		"server.log_level",
		"upstream.endpoint",
		"upstream.timezone",
		"upstream.table.columns",
		"upstream.auth.mode",
		"probe.interval",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_CombinesErrors(t *testing.T) {
	cfg := defaults()
	cfg.Server.HTTPPort = 70000
	cfg.Stream.Window = 0

	errs := multierr.Errors(validate(cfg))
	// endpoint, http_port, stream.window
	if len(errs) != 3 {
		t.Errorf("validate() returned %d errors, want 3: %v", len(errs), errs)
	}
}

func TestLoad_StreamDisabledSkipsStreamChecks(t *testing.T) {
	cfg := loadFromString(t, minimalYAML+`
stream:
  enabled: false
  interval: 0s
  window: 0s
`)
	if cfg.Stream.Enabled {
		t.Error("stream.enabled: got true, want false")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := loadStringErr(t, "server: [unclosed"); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_AuthModes(t *testing.T) {
	tests := []struct {
		name string
		auth string
		ok   bool
	}{
		{"none", "mode: none", true},
		{"empty", "mode: \"\"", true},
		{"apikey", "mode: apikey", true},
		{"bearer", "mode: bearer", true},
		{"basic", "mode: basic", true},
		{"mtls complete", "{mode: mtls, cert_file: c.pem, key_file: k.pem}", true},
		{"mtls missing key", "{mode: mtls, cert_file: c.pem}", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			auth := tc.auth
			if !strings.HasPrefix(auth, "{") {
				auth = "{" + auth + "}"
			}
			_, err := loadStringErr(t, minimalYAML+"  auth: "+auth+"\n")
			if (err == nil) != tc.ok {
				t.Errorf("Load() error = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestServerConfig_Level_Invalid(t *testing.T) {
	if got := (ServerConfig{LogLevel: "chatty"}).Level(); got != slog.LevelInfo {
		t.Errorf("Level(): got %v, want info", got)
	}
}

func TestAuthConfig_Secrets(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	t.Setenv("TEST_BEARER_TOKEN", "mytoken")
	t.Setenv("TEST_PASSWORD", "hunter2")
	a := AuthConfig{KeyEnv: "TEST_API_KEY", TokenEnv: "TEST_BEARER_TOKEN", PasswordEnv: "TEST_PASSWORD"}

	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}
	if got := a.Token(); got != "mytoken" {
		t.Errorf("Token(): got %q, want %q", got, "mytoken")
	}
	if got := a.Password(); got != "hunter2" {
		t.Errorf("Password(): got %q, want %q", got, "hunter2")
	}
}

func TestAuthConfig_Empty(t *testing.T) {
	var a AuthConfig
	if a.Key() != "" || a.Token() != "" || a.Password() != "" {
		t.Error("secrets with no env names should be empty")
	}
	if h := a.EffectiveHeader(); h != "X-Api-Key" {
		t.Errorf("EffectiveHeader(): got %q, want X-Api-Key", h)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}

func TestLoad_Example(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "example.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.Auth.Mode != "apikey" || cfg.Upstream.Auth.EffectiveHeader() != "X-Api-Key" {
		t.Errorf("auth: got %+v", cfg.Upstream.Auth)
	}
	loc, err := cfg.Upstream.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/Brussels" {
		t.Errorf("Location() = %s, want Europe/Brussels", loc)
	}
}
