package observability

import "database/sql"

// Schema is the DDL of the telemetry database. Rows are append-only and
// pruned by Cleanup; timestamps are unix seconds.
const Schema = `
-- Export renders, export sizes, snapshot assembly times and save failures.
-- labels is a JSON object: format, view, action, stage, collection.
CREATE TABLE IF NOT EXISTS metrics_timeseries (
    metric_name TEXT    NOT NULL,
    timestamp   INTEGER NOT NULL,
    value       REAL    NOT NULL,
    labels      TEXT    CHECK (labels IS NULL OR json_valid(labels)),
    unit        TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_name_time ON metrics_timeseries(metric_name, timestamp);

-- export.render, export.live and entry.bulk_save, one row per attempt.
-- details is JSON (export_id, format, stage, elapsed_ms) when present.
CREATE TABLE IF NOT EXISTS business_event_logs (
    event_id     TEXT PRIMARY KEY,
    event_type   TEXT    NOT NULL,
    service_name TEXT    NOT NULL,
    entity_type  TEXT,
    entity_id    TEXT,
    action       TEXT    NOT NULL,
    details      TEXT,
    success      INTEGER NOT NULL DEFAULT 1,
    created_at   INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE INDEX IF NOT EXISTS idx_event_logs_time ON business_event_logs(created_at, event_type);

CREATE TABLE IF NOT EXISTS http_request_logs (
    trace_id    TEXT,
    method      TEXT NOT NULL,
    path        TEXT NOT NULL,
    status_code INTEGER,
    duration_ms INTEGER,
    ip_address  TEXT,
    created_at  INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE INDEX IF NOT EXISTS idx_http_logs_time ON http_request_logs(created_at);
`

// Init applies Schema to db.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
