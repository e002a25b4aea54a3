// Command prismd is the Prism multi-client audio router daemon.
// Run with --mock to register synthetic tone clients on the bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petitstrawberry/prism/internal/api"
	"github.com/petitstrawberry/prism/internal/config"
	"github.com/petitstrawberry/prism/internal/control"
	"github.com/petitstrawberry/prism/internal/engine"
	"github.com/petitstrawberry/prism/internal/events"
	"github.com/petitstrawberry/prism/internal/host"
	"github.com/petitstrawberry/prism/internal/identity"
	"github.com/petitstrawberry/prism/internal/metrics"
	"github.com/petitstrawberry/prism/internal/models"
	"github.com/petitstrawberry/prism/internal/zeroconf"
)

const version = "0.1.0"

func main() {
	var (
		addr   = flag.String("addr", control.DefaultAddr, "HTTP listen address")
		cfgDir = flag.String("config-dir", "", "config directory (default: ~/.config/prism)")
		debug  = flag.Bool("debug", false, "enable debug logging")
		mock   = flag.Bool("mock", false, "register synthetic tone clients on the bus")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Resolve config directory
	if *cfgDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		*cfgDir = filepath.Join(home, ".config", "prism")
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Bus geometry
	cfg, err := config.Load(*cfgDir)
	if err != nil {
		slog.Warn("config load", "err", err)
	}
	slog.Info("bus geometry",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.BusChannels,
		"ring_frames", cfg.RingFrames,
		"frame_size", cfg.FrameSize,
	)
	go func() {
		if err := config.Watch(ctx, *cfgDir); err != nil {
			slog.Warn("config watch failed", "err", err)
		}
	}()

	// Engine and event bus
	eng := engine.New(cfg)
	bus := events.NewBus()
	eng.SetNotifier(func(sel engine.Selector) {
		switch sel {
		case engine.SelectorClientList:
			bus.Publish(models.Directory{Clients: eng.Snapshot()})
		case engine.SelectorDeviceRunning:
			slog.Info("device running state changed", "running", eng.Running())
		}
	})

	// Process identity resolution
	resolver := identity.NewResolver()

	// Cycle clock; with --mock it also drives two tone clients so the bus
	// carries signal out of the box.
	clock := host.NewClock(eng)
	if *mock {
		slog.Info("mock mode: registering tone clients")
		clock.AddWriter(host.NewTone(1, 1001, 440, 0.2, cfg.SampleRate))
		clock.AddWriter(host.NewTone(2, 1002, 660, 0.2, cfg.SampleRate))
	}
	go func() {
		if err := clock.Run(ctx); err != nil {
			slog.Error("cycle clock stopped", "err", err)
		}
	}()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(eng))

	// Zeroconf mDNS registration
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "prism"
	}
	port := control.DefaultPort
	if parts := strings.SplitN(*addr, ":", 2); len(parts) == 2 && parts[1] != "" {
		if p, err := strconv.Atoi(parts[1]); err == nil {
			port = p
		}
	}
	txt := []string{
		"version=" + version,
		fmt.Sprintf("channels=%d", cfg.BusChannels),
		fmt.Sprintf("rate=%g", cfg.SampleRate),
	}
	zc := zeroconf.New(hostname, port, txt)
	go func() {
		if err := zc.Start(ctx); err != nil {
			slog.Warn("zeroconf failed", "err", err)
		}
	}()

	// HTTP server
	info := models.Info{
		Version:     version,
		SampleRate:  cfg.SampleRate,
		BusChannels: cfg.BusChannels,
		RingFrames:  cfg.RingFrames,
		FrameSize:   cfg.FrameSize,
		Mock:        *mock,
	}
	router := api.NewRouter(eng, resolver, bus, clock, reg, info)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE and capture streams)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("prismd listening", "addr", *addr, "mock", *mock, "config", *cfgDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	slog.Info("shutdown complete")
}
