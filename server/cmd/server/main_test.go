package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/checkfeed/checkfeed/server/internal/config"
	"github.com/checkfeed/checkfeed/server/internal/feed"
	"github.com/checkfeed/checkfeed/server/internal/metrics"
	"github.com/checkfeed/checkfeed/server/internal/probe"
	"github.com/checkfeed/checkfeed/server/internal/ws"
)

func testConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cfg
}

func TestNewMux_Routes(t *testing.T) {
	m := metrics.New()
	src := feed.New(nil, time.UTC, m)
	mux := newMux(src, ws.New(src, time.Hour, time.Hour), m)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/columns", http.StatusOK},
		{"/api/v1/page", http.StatusBadRequest},
		{"/metrics", http.StatusOK},
		{"/ws/stream", http.StatusBadRequest}, // not an upgrade request
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s: got %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestNewMux_StreamDisabled(t *testing.T) {
	src := feed.New(nil, time.UTC, nil)
	rec := httptest.NewRecorder()
	newMux(src, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/stream", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /ws/stream with stream disabled: got %d, want 404", rec.Code)
	}
}

func TestReload_AppliesRuntimeSettings(t *testing.T) {
	current := testConfig(t, "upstream:\n  endpoint: https://a.example.com\n  timezone: UTC\n")
	next := testConfig(t, "server:\n  log_level: debug\nupstream:\n  endpoint: https://b.example.com\n  timezone: Europe/Brussels\n")

	src := feed.New(nil, time.UTC, nil)
	prb := probe.New(nil, time.Hour, nil)
	var level slog.LevelVar

	reload(current, next, src, prb, nil, &level)

	if got := src.Location().String(); got != "Europe/Brussels" {
		t.Errorf("location: got %q, want Europe/Brussels", got)
	}
	if level.Level() != slog.LevelDebug {
		t.Errorf("level: got %v, want debug", level.Level())
	}
}

func TestReload_RejectsBadClient(t *testing.T) {
	current := testConfig(t, "upstream:\n  endpoint: https://a.example.com\n  timezone: UTC\n")
	next := testConfig(t, "server:\n  log_level: debug\nupstream:\n  endpoint: https://b.example.com\n  tls: { ca_file: /nonexistent/ca.pem }\n")

	src := feed.New(nil, time.UTC, nil)
	var level slog.LevelVar

	reload(current, next, src, probe.New(nil, time.Hour, nil), nil, &level)

	if src.Location() != time.UTC {
		t.Errorf("location changed to %v on rejected reload", src.Location())
	}
	if level.Level() != slog.LevelInfo {
		t.Errorf("level changed to %v on rejected reload", level.Level())
	}
}
