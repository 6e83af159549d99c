package shield

import "database/sql"

// Schema defines the rate_limits table read by RateLimiter. endpoint is
// "METHOD /path", or "METHOD /prefix*" for a family of paths. The seeded
// rules throttle the exports per client: each PNG or PDF capture starts a
// browser, the live capture too, while workbooks only read the store.
const Schema = `
CREATE TABLE IF NOT EXISTS rate_limits (
    endpoint       TEXT PRIMARY KEY,
    max_requests   INTEGER NOT NULL DEFAULT 60,
    window_seconds INTEGER NOT NULL DEFAULT 60,
    enabled        INTEGER NOT NULL DEFAULT 1
);

INSERT OR IGNORE INTO rate_limits (endpoint, max_requests, window_seconds, enabled) VALUES
    ('GET /api/export', 6, 60, 1),
    ('GET /api/export/live', 3, 60, 1),
    ('GET /api/export/*', 30, 60, 1),
    ('POST /entry', 30, 60, 1);
`

// Init creates the shield tables if they don't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
