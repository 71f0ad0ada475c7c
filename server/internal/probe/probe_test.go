package probe_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/checkfeed/checkfeed/server/internal/metrics"
	"github.com/checkfeed/checkfeed/server/internal/probe"
	"github.com/checkfeed/checkfeed/server/internal/upstream"
)

// stubResolver returns a configurable element list.
type stubResolver struct {
	mu       sync.Mutex
	elements []upstream.Element
	err      error
	calls    int
}

func (s *stubResolver) Elements(context.Context) ([]upstream.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.elements, s.err
}

func (s *stubResolver) set(elements []upstream.Element, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements, s.err = elements, err
}

var oneElement = []upstream.Element{{DataMinerID: 1, ElementID: 2}}

// startServer starts a gRPC server with the probe registered and the logging
// interceptor installed, and returns a connected health client.
func startServer(t *testing.T, p *probe.Probe) healthpb.HealthClient {
	t.Helper()

	srv := grpc.NewServer(grpc.UnaryInterceptor(probe.LoggingInterceptor()))
	p.Register(srv)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.Serve(lis) //nolint:errcheck

	t.Cleanup(func() {
		srv.Stop()
		lis.Close()
	})

	conn, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestProbe_NotServingBeforeFirstCheck(t *testing.T) {
	c := startServer(t, probe.New(&stubResolver{elements: oneElement}, time.Hour, nil))
	for _, svc := range []string{"", probe.ServiceName} {
		if got := check(t, c, svc); got != healthpb.HealthCheckResponse_NOT_SERVING {
			t.Errorf("status(%q): got %v, want NOT_SERVING", svc, got)
		}
	}
}

func TestProbe_Check(t *testing.T) {
	tests := []struct {
		name     string
		elements []upstream.Element
		err      error
		want     healthpb.HealthCheckResponse_ServingStatus
	}{
		{"exactly one", oneElement, nil, healthpb.HealthCheckResponse_SERVING},
		{"none", nil, nil, healthpb.HealthCheckResponse_NOT_SERVING},
		{"two", append(oneElement, upstream.Element{ElementID: 3}), nil, healthpb.HealthCheckResponse_NOT_SERVING},
		{"lookup error", nil, upstream.ErrUnavailable, healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := probe.New(&stubResolver{elements: tt.elements, err: tt.err}, time.Hour, nil)
			c := startServer(t, p)

			up := p.Check(context.Background())
			if up != (tt.want == healthpb.HealthCheckResponse_SERVING) {
				t.Errorf("Check() = %v", up)
			}
			for _, svc := range []string{"", probe.ServiceName} {
				if got := check(t, c, svc); got != tt.want {
					t.Errorf("status(%q): got %v, want %v", svc, got, tt.want)
				}
			}
		})
	}
}

func TestProbe_UnknownService(t *testing.T) {
	c := startServer(t, probe.New(&stubResolver{}, time.Hour, nil))
	_, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	if code := status.Code(err); code != codes.NotFound {
		t.Errorf("code: got %v, want NotFound", code)
	}
}

func TestProbe_RunTracksUpstream(t *testing.T) {
	r := &stubResolver{elements: oneElement}
	p := probe.New(r, 10*time.Millisecond, nil)
	c := startServer(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	waitFor(t, c, healthpb.HealthCheckResponse_SERVING)

	r.set(nil, errors.New("down"))
	waitFor(t, c, healthpb.HealthCheckResponse_NOT_SERVING)

	r.set(oneElement, nil)
	waitFor(t, c, healthpb.HealthCheckResponse_SERVING)

	cancel()
	<-done
	if got := check(t, c, probe.ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status after shutdown: got %v, want NOT_SERVING", got)
	}
}

func TestProbe_SetResolver(t *testing.T) {
	p := probe.New(nil, time.Hour, nil)
	if p.Check(context.Background()) {
		t.Fatal("Check() with nil resolver = true, want false")
	}
	p.SetResolver(&stubResolver{elements: oneElement})
	if !p.Check(context.Background()) {
		t.Error("Check() after SetResolver = false, want true")
	}
}

func TestProbe_UpdatesUpstreamUpGauge(t *testing.T) {
	m := metrics.New()
	p := probe.New(&stubResolver{elements: oneElement}, time.Hour, m)
	p.Check(context.Background())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "checkfeed_upstream_up 1") {
		t.Error("checkfeed_upstream_up not set to 1")
	}
}

// waitFor polls the overall health status until it equals want.
func waitFor(t *testing.T, c healthpb.HealthClient, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check(t, c, "") == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status never became %v", want)
}
