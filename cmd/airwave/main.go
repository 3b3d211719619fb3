package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/airwave/internal/config"
	"github.com/zsiec/airwave/internal/stream"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.SlogLevel(),
		TimeFormat: time.RFC3339,
	})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	slog.Info("airwave starting",
		"version", version,
		"event_port", cfg.Listen.EventPort,
		"control_port", cfg.Listen.ControlPort,
	)

	eventLn, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Listen.EventPort))
	if err != nil {
		slog.Error("failed to open event port", "error", err)
		os.Exit(1)
	}
	controlConn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", cfg.Listen.ControlPort))
	if err != nil {
		slog.Error("failed to open control port", "error", err)
		os.Exit(1)
	}

	// Media processors are spawned per negotiated stream by the session
	// layer; only the session-wide sideband channels run for the whole
	// process lifetime.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stream.NewEvent(eventLn, nil).Run(ctx)
	})
	g.Go(func() error {
		return stream.NewControl(controlConn, nil).Run(ctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("sideband processor failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
