// Package monitor assembles every daemon task into one supervised group,
// generalizing the teacher's engine.Engine facade (engine/engine.go) from a
// crawl-pipeline owner into the ICMP monitor's composition root: Store,
// Prober Pool, Stats Engine, Shared Snapshot, and the two ancillary
// collectors, run together via github.com/oklog/run the way the pack's
// GoogleCloudPlatform-prometheus-engine ping example composes an HTTP
// server and a signal handler into one run.Group.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/run"

	"icmpmon/internal/collectors/interfaces"
	"icmpmon/internal/collectors/publicip"
	"icmpmon/internal/config"
	"icmpmon/internal/prober"
	"icmpmon/internal/registry"
	"icmpmon/internal/snapshot"
	"icmpmon/internal/stats"
	"icmpmon/internal/store"
	"icmpmon/internal/telemetry/logging"
	"icmpmon/internal/telemetry/metrics"
	"icmpmon/internal/telemetry/tracing"
	"icmpmon/internal/types"
)

// Monitor owns every long-running task of one process instance.
type Monitor struct {
	settings config.Settings
	targets  []types.Target

	store   *store.Store
	snap    *snapshot.Shared
	metrics *metrics.Registry
	log     logging.Logger

	proberPool   *prober.Pool
	statsEngine  *stats.Engine
	publicIP     *publicip.Collector
	ifaceCollect *interfaces.Collector
	metricsSrv   *http.Server
}

// New builds a Monitor from a loaded settings file, an opened Store, and the
// target registry. tracer may be nil (StartSpan on a nil *tracing.Tracer is a
// safe no-op); production callers pass the one built by tracing.New so every
// probe cycle and stats pass opens a correlated span (SPEC_FULL.md §4.9). It
// does not start anything.
func New(settings config.Settings, st *store.Store, reg *metrics.Registry, log logging.Logger, targets []types.Target, tracer *tracing.Tracer) *Monitor {
	snap := snapshot.New(targetIDs(targets))

	proberPool := prober.New(st, snap, reg, log.With("component", "prober"), prober.Config{
		Interval: settings.ProbeInterval,
		EchoBin:  settings.EchoUtility,
		Tracer:   tracer,
	})

	statsEngine := stats.New(st, snap, reg, log.With("component", "stats"), stats.Config{
		Interval:          settings.StatsInterval,
		RetentionWindow:   settings.RetentionWindow,
		OneMinuteMinTotal: settings.OneMinuteTotalThreshold,
		Tracer:            tracer,
	})

	pub := publicip.New(snap, reg, log.With("component", "publicip"), publicip.Config{
		Interval: settings.PublicIPInterval,
		Timeout:  settings.HTTPClientTimeout,
	})

	ifaceCollector := interfaces.New(snap, log.With("component", "interfaces"), interfaces.Config{
		Interval: settings.InterfaceEnumInterval,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	metricsSrv := &http.Server{Addr: settings.MetricsListenAddr, Handler: mux}

	return &Monitor{
		settings: settings, targets: targets,
		store: st, snap: snap, metrics: reg, log: log,
		proberPool: proberPool, statsEngine: statsEngine,
		publicIP: pub, ifaceCollect: ifaceCollector, metricsSrv: metricsSrv,
	}
}

// Snapshot exposes the Shared Snapshot for the (out-of-scope) view layer.
func (m *Monitor) Snapshot() *snapshot.Shared { return m.snap }

// Run blocks until ctx is cancelled or a task fails fatally, then tears down
// every task in the group (spec.md §5: "probers observe a process-wide
// shutdown signal and exit at the next loop head").
func (m *Monitor) Run(ctx context.Context) error {
	var g run.Group

	runCtx, cancel := context.WithCancel(ctx)
	g.Add(func() error {
		m.proberPool.Start(runCtx, m.targets)
		m.proberPool.Wait()
		return nil
	}, func(error) { cancel() })

	g.Add(func() error {
		m.statsEngine.Run(runCtx, m.targets)
		return nil
	}, func(error) { cancel() })

	g.Add(func() error {
		m.publicIP.Run(runCtx)
		return nil
	}, func(error) { cancel() })

	g.Add(func() error {
		m.ifaceCollect.Run(runCtx)
		return nil
	}, func(error) { cancel() })

	g.Add(func() error {
		m.log.InfoCtx(runCtx, "metrics server listening", "addr", m.settings.MetricsListenAddr)
		if err := m.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("monitor: metrics server: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = m.metricsSrv.Shutdown(shutdownCtx)
	})

	g.Add(func() error {
		<-runCtx.Done()
		return runCtx.Err()
	}, func(error) { cancel() })

	return g.Run()
}

func targetIDs(targets []types.Target) []int64 {
	ids := make([]int64, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID)
	}
	return ids
}

// Bootstrap loads settings, the target registry, and opens the Store,
// syncing the registry into it (spec.md §6 startup sequence). A failure at
// any of these stages is fatal (spec.md §7).
func Bootstrap(ctx context.Context, settingsPath, registryPath string, reg *metrics.Registry, log logging.Logger, tracer *tracing.Tracer) (*Monitor, *store.Store, error) {
	settings, err := config.Load(settingsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}

	targets, err := registry.Load(registryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}

	st, err := store.Open("icmp_monitor.sqlite3", store.Config{PageCacheKB: settings.StorePageCacheKB}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}

	if err := registry.Sync(ctx, st, targets); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}

	return New(settings, st, reg, log, targets, tracer), st, nil
}
