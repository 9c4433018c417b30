package store

import "database/sql"

const tableDDL = `
CREATE TABLE IF NOT EXISTS targets (
	target_id   INTEGER PRIMARY KEY,
	address     TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	target_id INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	success   INTEGER NOT NULL,
	latency_ms REAL,
	ttl        INTEGER,
	bytes      INTEGER
);

CREATE INDEX IF NOT EXISTS idx_results_target_ts ON results (target_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_results_ts ON results (timestamp);

CREATE TABLE IF NOT EXISTS ping_stats (
	target_id     INTEGER PRIMARY KEY,
	run_id        TEXT NOT NULL,
	chosen_window TEXT NOT NULL,
	avg_latency   REAL,
	success_rate  REAL,
	total         INTEGER NOT NULL DEFAULT 0,
	updated_at    TEXT NOT NULL
);
`

// viewDDL builds a non-variance rolling window view for the given SQL
// interval literal (e.g. "-5 minutes").
func viewDDL(name, interval string) string {
	return `
CREATE VIEW ` + name + ` AS
SELECT
	target_id,
	ROUND(AVG(CASE WHEN success = 1 THEN latency_ms END), 2) AS avg_latency,
	ROUND(MIN(CASE WHEN success = 1 THEN latency_ms END), 2) AS min_latency,
	ROUND(MAX(CASE WHEN success = 1 THEN latency_ms END), 2) AS max_latency,
	ROUND(100.0 * SUM(success) * 1.0 / COUNT(*), 2) AS success_rate,
	COUNT(*) AS total,
	SUM(success) AS successes,
	SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) AS failures
FROM results
WHERE timestamp >= datetime('now', '` + interval + `', 'localtime')
GROUP BY target_id;
`
}

// view1minDDL additionally computes population variance of successful
// latencies, using a window function to get each target's own mean within
// the 1-minute slice (spec.md §3: "variance (1m window only)").
const view1minDDL = `
CREATE VIEW v_stats_01min AS
WITH w AS (
	SELECT
		target_id,
		success,
		latency_ms,
		AVG(CASE WHEN success = 1 THEN latency_ms END) OVER (PARTITION BY target_id) AS mean_latency
	FROM results
	WHERE timestamp >= datetime('now', '-1 minutes', 'localtime')
)
SELECT
	target_id,
	ROUND(AVG(CASE WHEN success = 1 THEN latency_ms END), 2) AS avg_latency,
	ROUND(MIN(CASE WHEN success = 1 THEN latency_ms END), 2) AS min_latency,
	ROUND(MAX(CASE WHEN success = 1 THEN latency_ms END), 2) AS max_latency,
	ROUND(100.0 * SUM(success) * 1.0 / COUNT(*), 2) AS success_rate,
	COUNT(*) AS total,
	SUM(success) AS successes,
	SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) AS failures,
	ROUND(AVG(CASE WHEN success = 1 THEN (latency_ms - mean_latency) * (latency_ms - mean_latency) END), 2) AS variance
FROM w
GROUP BY target_id;
`

var viewDrops = []string{
	"DROP VIEW IF EXISTS v_stats_01min",
	"DROP VIEW IF EXISTS v_stats_05min",
	"DROP VIEW IF EXISTS v_stats_15min",
}

// ensureSchema creates tables/indexes if absent and unconditionally
// drops-then-recreates the three rolling-window views (spec.md §6, §9).
func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(tableDDL); err != nil {
		return err
	}
	for _, stmt := range viewDrops {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := db.Exec(view1minDDL); err != nil {
		return err
	}
	if _, err := db.Exec(viewDDL("v_stats_05min", "-5 minutes")); err != nil {
		return err
	}
	if _, err := db.Exec(viewDDL("v_stats_15min", "-15 minutes")); err != nil {
		return err
	}
	return nil
}
