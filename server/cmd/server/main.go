package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/checkfeed/checkfeed/server/internal/api"
	"github.com/checkfeed/checkfeed/server/internal/config"
	"github.com/checkfeed/checkfeed/server/internal/feed"
	"github.com/checkfeed/checkfeed/server/internal/metrics"
	"github.com/checkfeed/checkfeed/server/internal/probe"
	"github.com/checkfeed/checkfeed/server/internal/upstream"
	"github.com/checkfeed/checkfeed/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to config file")
	pflag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("checkfeed-server starting", "config", *configPath)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, &level); err != nil {
		slog.Error("checkfeed-server stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("checkfeed-server shut down")
}

func run(ctx context.Context, configPath string, level *slog.LevelVar) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level.Set(cfg.Server.Level())

	loc, err := cfg.Upstream.Location()
	if err != nil {
		return err
	}

	slog.Info("config loaded",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"upstream", cfg.Upstream.Endpoint,
		"timezone", loc.String(),
		"auth_mode", cfg.Upstream.Auth.Mode,
		"stream", cfg.Stream.Enabled,
	)

	m := metrics.New()
	client, err := upstream.New(cfg.Upstream, m)
	if err != nil {
		return err
	}

	src := feed.New(client, loc, m)
	prb := probe.New(client, cfg.Probe.Interval, m)

	var hub *ws.Hub
	if cfg.Stream.Enabled {
		hub = ws.New(src, cfg.Stream.Interval, cfg.Stream.Window)
	}

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(probe.LoggingInterceptor()))
	prb.Register(grpcSrv)

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen on grpc port %d: %w", cfg.Server.GRPCPort, err)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           newMux(src, hub, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("gRPC health service listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(grpcLis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		prb.Run(ctx)
		return nil
	})

	if hub != nil {
		g.Go(func() error {
			hub.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		err := config.Watch(ctx, configPath, func(next *config.Config) {
			reload(cfg, next, src, prb, m, level)
		})
		if err != nil {
			slog.Warn("config: hot reload disabled", "path", configPath, "err", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("checkfeed-server shutting down")
		grpcSrv.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newMux mounts the REST API, the optional WebSocket stream and /metrics.
func newMux(src *feed.Source, hub *ws.Hub, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(src, m))
	mux.Handle("/metrics", m.Handler())
	if hub != nil {
		mux.Handle("/ws/stream", hub)
	}
	return mux
}

// reload applies the parts of a new config that can change at runtime:
// the upstream client, the source location and the log level. Listener
// ports and stream/probe cadence need a restart.
func reload(current, next *config.Config, src *feed.Source, prb *probe.Probe, m *metrics.Metrics, level *slog.LevelVar) {
	loc, err := next.Upstream.Location()
	if err != nil {
		slog.Error("config: reload rejected", "err", err)
		return
	}
	client, err := upstream.New(next.Upstream, m)
	if err != nil {
		slog.Error("config: reload rejected", "err", err)
		return
	}

	src.SetClient(client)
	src.SetLocation(loc)
	prb.SetResolver(client)
	level.Set(next.Server.Level())

	if next.Server != current.Server || next.Stream != current.Stream || next.Probe != current.Probe {
		slog.Warn("config: server, stream and probe changes take effect after a restart")
	}
	slog.Info("config: applied",
		"upstream", next.Upstream.Endpoint,
		"timezone", loc.String(),
		"log_level", next.Server.Level().String(),
	)
}
