// Command checkfeed fetches health check pages from a running checkfeed
// server, or aggregates an exported results table offline.
//
//	checkfeed page --server http://localhost:8080 --start 2026-10-16T00:00:00Z --end 2026-10-17T00:00:00Z
//	checkfeed aggregate --file table.json --start ... --end ... --timezone Europe/Brussels -o json
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
