// Package store is the embedded relational persistence layer (spec.md §4.3):
// it owns the targets, raw probe results, durable stats, and the three
// rolling time-window views a Stats Engine pass reads from. Grounded on the
// teacher engine's internal/resources.Manager for the single-writer-mutex
// shape (engine/resources/manager.go: a mutex-protected struct serializing
// state mutation while reads stay lock-free), generalized from an in-memory
// LRU to a SQLite-backed store since spec.md §4.3/§6 requires a real embedded
// relational engine. modernc.org/sqlite is a pure-Go SQLite driver; no repo
// in the retrieval pack touches an embedded relational store, so this
// dependency is named rather than grounded (SPEC_FULL.md §4.9).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"icmpmon/internal/telemetry/logging"
	"icmpmon/internal/types"
)

// Config tunes the non-negotiable storage settings from spec.md §4.3.
type Config struct {
	// PageCacheKB sizes SQLite's in-memory page cache (negative PRAGMA
	// cache_size units). Defaults to ~10MB when zero.
	PageCacheKB int
}

// Store is the embedded relational store. All writes serialize behind
// writeMu; reads run unlocked, relying on WAL to stay lock-free against
// concurrent writers (spec.md §4.3, §5).
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	log     logging.Logger
}

// Open opens (creating if absent) the SQLite database at path, applies the
// fixed PRAGMA configuration, and (re)creates the schema and the three
// rolling-window views. Views are dropped and recreated on every startup so
// aggregate-rounding/variance-formula changes take effect without a
// migration (spec.md §6, §9).
func Open(path string, cfg Config, log logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// writeMu already serializes every writer, so the pool only needs to let
	// readers run concurrently with it: WAL's whole point is that a reader
	// doesn't block behind a writer holding the single writer lock. Capping
	// at one connection would force QueryWindow to queue behind
	// AppendResult/PersistStats on the same handle, defeating that (spec.md
	// §4.3, §5: reads are "lock-free with respect to writers").
	db.SetMaxOpenConns(8)

	if cfg.PageCacheKB <= 0 {
		cfg.PageCacheKB = 10240
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.PageCacheKB),
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: apply %q: %w", p, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

const timestampLayout = "2006-01-02 15:04:05.000"

func formatTimestamp(t time.Time) string {
	return t.In(time.Local).Format(timestampLayout)
}

// UpsertTarget inserts or replaces a target row, refreshing updated_at
// (spec.md §4.1: "match by target_id, replace description/address").
func (s *Store) UpsertTarget(ctx context.Context, t types.Target) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := formatTimestamp(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (target_id, address, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(target_id) DO UPDATE SET
			address = excluded.address,
			description = excluded.description,
			updated_at = excluded.updated_at
	`, t.ID, t.Address, t.Description, now, now)
	if err != nil {
		return fmt.Errorf("store: upsert target %d: %w", t.ID, err)
	}
	return nil
}

// AppendResult appends one raw probe outcome. Per spec.md §3, a failed probe
// must carry no latency/ttl/bytes; callers are expected to pass nil for
// those fields when success is false, but AppendResult enforces it anyway
// so a caller bug can never corrupt the invariant.
func (s *Store) AppendResult(ctx context.Context, r types.ProbeResult) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !r.Success {
		r.LatencyMs, r.TTL, r.Bytes = nil, nil, nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (target_id, timestamp, success, latency_ms, ttl, bytes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.TargetID, formatTimestamp(r.Timestamp), boolToInt(r.Success), r.LatencyMs, r.TTL, r.Bytes)
	if err != nil {
		return fmt.Errorf("store: append result for target %d: %w", r.TargetID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func viewNameFor(w types.Window) (string, error) {
	switch w {
	case types.Window1m:
		return "v_stats_01min", nil
	case types.Window5m:
		return "v_stats_05min", nil
	case types.Window15m:
		return "v_stats_15min", nil
	default:
		return "", fmt.Errorf("store: unknown window %q", w)
	}
}

// QueryWindow reads the named rolling-window view for one target. Every
// aggregate field is nil when the window has no qualifying rows.
func (s *Store) QueryWindow(ctx context.Context, targetID int64, window types.Window) (types.WindowStats, error) {
	view, err := viewNameFor(window)
	if err != nil {
		return types.WindowStats{}, err
	}

	hasVariance := window == types.Window1m
	cols := "avg_latency, min_latency, max_latency, success_rate, total, successes, failures"
	if hasVariance {
		cols += ", variance"
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE target_id = ?
	`, cols, view), targetID)

	var (
		avg, min, max, successRate, variance sql.NullFloat64
		total, successes, failures           sql.NullInt64
	)
	var scanErr error
	if hasVariance {
		scanErr = row.Scan(&avg, &min, &max, &successRate, &total, &successes, &failures, &variance)
	} else {
		scanErr = row.Scan(&avg, &min, &max, &successRate, &total, &successes, &failures)
	}
	if scanErr == sql.ErrNoRows {
		// No rows at all in the window: everything absent.
		return types.WindowStats{Window: window}, nil
	}
	if scanErr != nil {
		return types.WindowStats{}, fmt.Errorf("store: query window %s for target %d: %w", window, targetID, scanErr)
	}

	ws := types.WindowStats{
		Window:      window,
		AvgLatency:  nullFloat(avg),
		MinLatency:  nullFloat(min),
		MaxLatency:  nullFloat(max),
		SuccessRate: nullFloat(successRate),
		Total:       total.Int64,
		Successes:   successes.Int64,
		Failures:    failures.Int64,
	}
	if hasVariance {
		ws.Variance = nullFloat(variance)
	}
	return ws, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// PruneOlderThan removes result rows older than now-duration and returns the
// number of rows removed (spec.md §4.3, §8 invariant 6).
func (s *Store) PruneOlderThan(ctx context.Context, d time.Duration) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cutoff := formatTimestamp(time.Now().Add(-d))
	res, err := s.db.ExecContext(ctx, `DELETE FROM results WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: prune older than %s: %w", d, err)
	}
	return res.RowsAffected()
}

// PersistStats writes the durable per-target stats row (spec.md §4.5 step 2:
// "last writer wins"), keyed by target_id, carrying the chosen window's
// avg_latency, success_rate, total, and a run id for cross-restart
// correlation (SPEC_FULL.md §4.9).
func (s *Store) PersistStats(ctx context.Context, snap types.TargetSnapshot, runID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ping_stats (target_id, run_id, chosen_window, avg_latency, success_rate, total, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_id) DO UPDATE SET
			run_id = excluded.run_id,
			chosen_window = excluded.chosen_window,
			avg_latency = excluded.avg_latency,
			success_rate = excluded.success_rate,
			total = excluded.total,
			updated_at = excluded.updated_at
	`, snap.TargetID, runID, string(snap.ChosenWindow), snap.AvgLatency, snap.SuccessRate, snap.Total, formatTimestamp(snap.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: persist stats for target %d: %w", snap.TargetID, err)
	}
	return nil
}
