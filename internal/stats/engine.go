// Package stats implements the Stats Engine (spec.md §4.5): a single
// periodic worker that prunes stale results, recomputes each target's
// adaptively-windowed snapshot, persists it, and atomically swaps the new
// snapshot map into the Shared Snapshot. Grounded on the teacher engine's
// periodic-tick worker shape (engine/internal/pipeline monitorResults'
// select-on-ticker-or-ctx.Done loop), generalized from one result channel to
// one fixed-interval sweep over every target.
package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"icmpmon/internal/anomaly"
	"icmpmon/internal/store"
	"icmpmon/internal/telemetry/logging"
	"icmpmon/internal/telemetry/metrics"
	"icmpmon/internal/telemetry/tracing"
	"icmpmon/internal/types"
)

// Publisher is the subset of the Shared Snapshot the Stats Engine writes to.
type Publisher interface {
	SetStatsMap(stats map[int64]types.TargetSnapshot)
}

// Config tunes the Stats Engine's cadence and thresholds.
type Config struct {
	Interval        time.Duration
	RetentionWindow time.Duration
	// OneMinuteMinTotal is the minimum 1m-window sample count before the
	// window-selection rule will choose 1m over collecting (spec.md §9 open
	// question on z-score flap at low n: kept at the stock minimum of 2;
	// raising it trades faster dashboard feedback for fewer early false
	// "anomalous" labels on a window too small for its stddev to mean much).
	OneMinuteMinTotal int
	Tracer            *tracing.Tracer
}

// Engine is the Stats Engine worker.
type Engine struct {
	store   *store.Store
	pub     Publisher
	metrics *metrics.Registry
	log     logging.Logger
	tracer  *tracing.Tracer
	cfg     Config
	runID   string
}

// New constructs an Engine. runID correlates every row this process instance
// persists to ping_stats across restarts (SPEC_FULL.md §4.9).
func New(st *store.Store, pub Publisher, reg *metrics.Registry, log logging.Logger, cfg Config) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = 7 * 24 * time.Hour
	}
	if cfg.OneMinuteMinTotal <= 0 {
		cfg.OneMinuteMinTotal = 2
	}
	return &Engine{store: st, pub: pub, metrics: reg, log: log, tracer: cfg.Tracer, cfg: cfg, runID: uuid.NewString()}
}

// Run blocks, performing one pass immediately and then every cfg.Interval,
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, targets []types.Target) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.pass(ctx, targets)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pass(ctx, targets)
		}
	}
}

func (e *Engine) pass(ctx context.Context, targets []types.Target) {
	ctx, span := e.tracer.StartSpan(ctx, "stats.pass")
	span.SetAttributes(attribute.Int("icmpmon.target_count", len(targets)))
	defer span.End()

	start := time.Now()
	defer func() { e.metrics.StatsPassDuration.Observe(time.Since(start).Seconds()) }()

	removed, err := e.store.PruneOlderThan(ctx, e.cfg.RetentionWindow)
	if err != nil {
		e.log.ErrorCtx(ctx, "retention sweep failed", "error", err)
	} else if removed > 0 {
		e.metrics.RetentionSweptTotal.Add(float64(removed))
	}

	snaps := make(map[int64]types.TargetSnapshot, len(targets))
	now := time.Now()
	for _, t := range targets {
		snap, err := e.computeTarget(ctx, t.ID, now)
		if err != nil {
			e.log.ErrorCtx(ctx, "stats recompute failed", "target_id", t.ID, "error", err)
			continue
		}
		snaps[t.ID] = snap

		if err := e.store.PersistStats(ctx, snap, e.runID); err != nil {
			e.log.ErrorCtx(ctx, "persist stats failed", "target_id", t.ID, "error", err)
		}

		for _, w := range []types.Window{types.Window1m, types.Window5m, types.Window15m} {
			val := 0.0
			if string(snap.ChosenWindow) == string(w) {
				val = 1
			}
			e.metrics.ChosenWindowGauge.WithLabelValues(targetLabel(t.ID), string(w)).Set(val)
		}
	}

	e.pub.SetStatsMap(snaps)
}

// computeTarget applies the window-selection rule of spec.md §4.5 step 2,
// strict order, first match wins.
func (e *Engine) computeTarget(ctx context.Context, targetID int64, now time.Time) (types.TargetSnapshot, error) {
	w15, err := e.store.QueryWindow(ctx, targetID, types.Window15m)
	if err != nil {
		return types.TargetSnapshot{}, err
	}
	if w15.Total >= 10 {
		return toSnapshot(targetID, types.ChosenWindow15m, w15, now), nil
	}

	w5, err := e.store.QueryWindow(ctx, targetID, types.Window5m)
	if err != nil {
		return types.TargetSnapshot{}, err
	}
	if w5.Total >= 5 {
		return toSnapshot(targetID, types.ChosenWindow5m, w5, now), nil
	}

	w1, err := e.store.QueryWindow(ctx, targetID, types.Window1m)
	if err != nil {
		return types.TargetSnapshot{}, err
	}
	if w1.Total >= int64(e.cfg.OneMinuteMinTotal) {
		snap := toSnapshot(targetID, types.ChosenWindow1m, w1, now)
		if w1.Variance != nil {
			snap.StdDev = math.Sqrt(*w1.Variance)
		}
		return snap, nil
	}

	return types.TargetSnapshot{
		TargetID: targetID, ChosenWindow: types.ChosenWindowCollecting, UpdatedAt: now,
	}, nil
}

func toSnapshot(targetID int64, chosen types.ChosenWindow, ws types.WindowStats, now time.Time) types.TargetSnapshot {
	return types.TargetSnapshot{
		TargetID:     targetID,
		ChosenWindow: chosen,
		AvgLatency:   ws.AvgLatency,
		SuccessRate:  ws.SuccessRate,
		Total:        ws.Total,
		UpdatedAt:    now,
	}
}

// Classify applies the anomaly package's pure z-score labeling to a single
// successful sample against the target's currently chosen window, exposed so
// the (out-of-scope) view layer can color a fresh probe without recomputing
// the window itself.
func Classify(probeFailed bool, snap types.TargetSnapshot, latencyMs float64) anomaly.Label {
	collecting := snap.ChosenWindow == types.ChosenWindowCollecting
	on1m := snap.ChosenWindow == types.ChosenWindow1m
	mu := 0.0
	if snap.AvgLatency != nil {
		mu = *snap.AvgLatency
	}
	return anomaly.Classify(probeFailed, collecting, on1m, latencyMs, mu, snap.StdDev)
}

func targetLabel(id int64) string { return fmt.Sprintf("%d", id) }
