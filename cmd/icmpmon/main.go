// Command icmpmon is the ICMP reachability monitor daemon (spec.md §1, §6):
// it loads the target registry and settings file, opens the embedded store,
// and runs the prober pool, stats engine, and ancillary collectors until a
// shutdown signal arrives. Grounded on the teacher CLI's flag-parsing and
// signal-driven shutdown shape (cli/cmd/ariadne/main.go), generalized to use
// github.com/oklog/run's SignalHandler instead of a hand-rolled signal
// channel, per SPEC_FULL.md §4.9.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/oklog/run"

	"icmpmon/internal/config"
	"icmpmon/internal/monitor"
	"icmpmon/internal/telemetry/logging"
	"icmpmon/internal/telemetry/metrics"
	"icmpmon/internal/telemetry/tracing"
)

func main() {
	os.Exit(run0())
}

func run0() int {
	var (
		settingsPath = flag.String("settings", "icmp_monitor.settings.yaml", "Path to the optional global settings file")
		registryPath = flag.String("registry", "icmp_monitor.json", "Path to the target registry file")
		logJSON      = flag.Bool("log-json", true, "Emit logs as JSON (slog.JSONHandler) instead of text")
	)
	flag.Parse()

	handlerOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if *logJSON {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	log := logging.New(slog.New(handler))

	ctx := context.Background()

	settingsPreview, err := config.Load(*settingsPath)
	if err != nil {
		log.ErrorCtx(ctx, "fatal: malformed settings file", "error", err)
		return 1
	}

	if _, err := exec.LookPath(settingsPreview.EchoUtility); err != nil {
		log.ErrorCtx(ctx, "fatal: echo utility not found on PATH", "echo_utility", settingsPreview.EchoUtility, "error", err)
		return 1
	}

	tracer, shutdownTracer := tracing.New("icmpmon", settingsPreview.TracingEnabled)
	defer shutdownTracer(context.Background())

	reg := metrics.New()

	m, st, err := monitor.Bootstrap(ctx, *settingsPath, *registryPath, reg, log, tracer)
	if err != nil {
		log.ErrorCtx(ctx, "fatal: startup failed", "error", err)
		return 1
	}
	defer st.Close()

	var g run.Group

	runCtx, cancel := context.WithCancel(ctx)
	var monitorErr error
	g.Add(func() error {
		monitorErr = m.Run(runCtx)
		return monitorErr
	}, func(error) { cancel() })

	g.Add(run.SignalHandler(runCtx, syscall.SIGINT, syscall.SIGTERM))

	// The watcher is advisory: if it cannot start it returns at once, and the
	// actor then waits for shutdown instead of ending the whole group.
	watchCtx, watchCancel := context.WithCancel(ctx)
	g.Add(func() error {
		config.WatchAdvisory(watchCtx, log, *registryPath, *settingsPath)
		<-watchCtx.Done()
		return nil
	}, func(error) { watchCancel() })

	// A signal or context cancellation ending the group is a graceful
	// shutdown (exit 0, spec.md §6). If the monitor itself stopped because
	// one of its tasks failed (e.g. the metrics server could not listen),
	// the process exits 1.
	if err := g.Run(); err != nil {
		log.InfoCtx(ctx, "shutting down", "reason", err)
	}
	if monitorErr != nil && !errors.Is(monitorErr, context.Canceled) {
		log.ErrorCtx(ctx, "fatal: monitor task failed", "error", monitorErr)
		return 1
	}
	return 0
}
