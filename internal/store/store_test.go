package store

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"icmpmon/internal/telemetry/logging"
	"icmpmon/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "icmp_monitor.sqlite3")
	s, err := Open(path, Config{}, logging.New(slog.Default()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

func TestUpsertTargetIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	target := types.Target{ID: 1, Address: "1.1.1.1", Description: "first"}
	require.NoError(t, s.UpsertTarget(ctx, target))
	target.Description = "second"
	require.NoError(t, s.UpsertTarget(ctx, target))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM targets WHERE target_id = ?`, 1).Scan(&count))
	require.Equal(t, 1, count)

	var desc string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT description FROM targets WHERE target_id = ?`, 1).Scan(&desc))
	require.Equal(t, "second", desc)
}

func TestAppendResultEnforcesFailureInvariant(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTarget(ctx, types.Target{ID: 1, Address: "1.1.1.1"}))

	err := s.AppendResult(ctx, types.ProbeResult{
		TargetID: 1, Timestamp: time.Now(), Success: false,
		LatencyMs: f(12), TTL: i(64), Bytes: i(32), // should be stripped
	})
	require.NoError(t, err)

	var latency sql.NullFloat64
	var ttl, bytes sql.NullInt64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT latency_ms, ttl, bytes FROM results WHERE target_id = ?`, 1).
		Scan(&latency, &ttl, &bytes))
	require.False(t, latency.Valid)
	require.False(t, ttl.Valid)
	require.False(t, bytes.Valid)
}

func TestQueryWindowEmptyIsAllAbsent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTarget(ctx, types.Target{ID: 1, Address: "1.1.1.1"}))

	ws, err := s.QueryWindow(ctx, 1, types.Window1m)
	require.NoError(t, err)
	require.Nil(t, ws.AvgLatency)
	require.Nil(t, ws.MinLatency)
	require.Nil(t, ws.MaxLatency)
	require.Nil(t, ws.SuccessRate)
	require.Equal(t, int64(0), ws.Total)
}

func TestQueryWindowAggregatesSuccessesAndFailures(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTarget(ctx, types.Target{ID: 1, Address: "1.1.1.1"}))

	now := time.Now()
	for _, lat := range []float64{10, 20, 30} {
		require.NoError(t, s.AppendResult(ctx, types.ProbeResult{
			TargetID: 1, Timestamp: now, Success: true, LatencyMs: f(lat), TTL: i(64), Bytes: i(32),
		}))
	}
	require.NoError(t, s.AppendResult(ctx, types.ProbeResult{TargetID: 1, Timestamp: now, Success: false}))

	ws, err := s.QueryWindow(ctx, 1, types.Window1m)
	require.NoError(t, err)
	require.Equal(t, int64(4), ws.Total)
	require.Equal(t, int64(3), ws.Successes)
	require.Equal(t, int64(1), ws.Failures)
	require.NotNil(t, ws.MinLatency)
	require.NotNil(t, ws.AvgLatency)
	require.NotNil(t, ws.MaxLatency)
	require.LessOrEqual(t, *ws.MinLatency, *ws.AvgLatency)
	require.LessOrEqual(t, *ws.AvgLatency, *ws.MaxLatency)
	require.InDelta(t, 20.0, *ws.AvgLatency, 0.01)
	require.NotNil(t, ws.Variance)
	// mean=20, deviations -10,0,10 => squared 100,0,100 => mean=66.67
	require.InDelta(t, 66.67, *ws.Variance, 0.5)
	require.InDelta(t, 75.0, *ws.SuccessRate, 0.01)
}

func TestPruneOlderThanRemovesStaleRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTarget(ctx, types.Target{ID: 1, Address: "1.1.1.1"}))

	old := time.Now().Add(-8 * 24 * time.Hour)
	recent := time.Now()
	require.NoError(t, s.AppendResult(ctx, types.ProbeResult{TargetID: 1, Timestamp: old, Success: true, LatencyMs: f(1)}))
	require.NoError(t, s.AppendResult(ctx, types.ProbeResult{TargetID: 1, Timestamp: recent, Success: true, LatencyMs: f(2)}))

	removed, err := s.PruneOlderThan(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var remaining int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&remaining))
	require.Equal(t, 1, remaining)
}

func TestPersistStatsLastWriterWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTarget(ctx, types.Target{ID: 1, Address: "1.1.1.1"}))

	require.NoError(t, s.PersistStats(ctx, types.TargetSnapshot{
		TargetID: 1, ChosenWindow: types.ChosenWindow1m, AvgLatency: f(10), SuccessRate: f(100), Total: 2, UpdatedAt: time.Now(),
	}, "run-1"))
	require.NoError(t, s.PersistStats(ctx, types.TargetSnapshot{
		TargetID: 1, ChosenWindow: types.ChosenWindow5m, AvgLatency: f(15), SuccessRate: f(90), Total: 5, UpdatedAt: time.Now(),
	}, "run-2"))

	var window, runID string
	var total int64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT chosen_window, run_id, total FROM ping_stats WHERE target_id = ?`, 1).
		Scan(&window, &runID, &total))
	require.Equal(t, "5m", window)
	require.Equal(t, "run-2", runID)
	require.Equal(t, int64(5), total)
}

func TestReopenRecreatesViewsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icmp_monitor.sqlite3")
	log := logging.New(slog.Default())

	s1, err := Open(path, Config{}, log)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path, Config{}, log)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.QueryWindow(context.Background(), 1, types.Window15m)
	require.NoError(t, err)
}
