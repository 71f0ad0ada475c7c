package probe

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/checkfeed/checkfeed/server/internal/metrics"
	"github.com/checkfeed/checkfeed/server/internal/upstream"
)

// ServiceName is the health service name of the page feed.
const ServiceName = "checkfeed.v1.Feed"

// Resolver lists the health check elements.
type Resolver interface {
	Elements(ctx context.Context) ([]upstream.Element, error)
}

type resolverBox struct{ Resolver }

// Probe drives the gRPC health status from periodic element lookups.
type Probe struct {
	health   *health.Server
	resolver atomic.Pointer[resolverBox]
	interval time.Duration
	metrics  *metrics.Metrics
}

// New returns a Probe that checks r every interval. m may be nil.
func New(r Resolver, interval time.Duration, m *metrics.Metrics) *Probe {
	p := &Probe{
		health:   health.NewServer(),
		interval: interval,
		metrics:  m,
	}
	p.SetResolver(r)
	p.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return p
}

// Register adds the health service to s.
func (p *Probe) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, p.health)
}

// SetResolver swaps the resolver used by subsequent checks.
func (p *Probe) SetResolver(r Resolver) {
	p.resolver.Store(&resolverBox{r})
}

// Run checks immediately and then every interval until ctx is cancelled, at
// which point every service is switched to NOT_SERVING.
func (p *Probe) Run(ctx context.Context) {
	p.Check(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			p.health.Shutdown()
			return
		case <-t.C:
			p.Check(ctx)
		}
	}
}

// Check performs one lookup, updates the health status and reports whether
// exactly one element resolved.
func (p *Probe) Check(ctx context.Context) bool {
	up := p.check(ctx)
	p.metrics.SetUpstreamUp(up)
	if up {
		p.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		p.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return up
}

func (p *Probe) check(ctx context.Context) bool {
	box := p.resolver.Load()
	if box == nil || box.Resolver == nil {
		return false
	}
	elements, err := box.Elements(ctx)
	if err != nil {
		slog.Warn("probe: element lookup failed", "err", err)
		return false
	}
	if len(elements) != 1 {
		slog.Warn("probe: expected exactly one health check element", "found", len(elements))
		return false
	}
	slog.Debug("probe: element resolved", "element", elements[0].Key(), "name", elements[0].Name)
	return true
}

func (p *Probe) setStatus(s healthpb.HealthCheckResponse_ServingStatus) {
	p.health.SetServingStatus("", s)
	p.health.SetServingStatus(ServiceName, s)
}
