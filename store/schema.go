package store

// Schema holds the DDL of the report store. Dates are TEXT in YYYY-MM-DD
// form so range filters compare lexically.
const Schema = `
CREATE TABLE IF NOT EXISTS sites (
    site       TEXT NOT NULL,
    date       TEXT NOT NULL,
    issued     REAL NOT NULL DEFAULT 0,
    received   REAL NOT NULL DEFAULT 0,
    stock      REAL NOT NULL DEFAULT 0,
    pob        INTEGER NOT NULL DEFAULT 0,
    color      TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (site, date)
);
CREATE INDEX IF NOT EXISTS idx_sites_date ON sites(date);

CREATE TABLE IF NOT EXISTS fuel (
    site       TEXT NOT NULL,
    date       TEXT NOT NULL,
    biosolar   REAL NOT NULL DEFAULT 0,
    pertalite  REAL NOT NULL DEFAULT 0,
    pertadex   REAL NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (site, date)
);
CREATE INDEX IF NOT EXISTS idx_fuel_date ON fuel(date);

CREATE TABLE IF NOT EXISTS rig_moves (
    id          TEXT PRIMARY KEY,
    site        TEXT NOT NULL,
    rig         TEXT NOT NULL,
    origin      TEXT NOT NULL DEFAULT '',
    destination TEXT NOT NULL DEFAULT '',
    date        TEXT NOT NULL,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rig_moves_date ON rig_moves(date, site);

CREATE TABLE IF NOT EXISTS activity_notes (
    site       TEXT NOT NULL,
    date       TEXT NOT NULL,
    body       TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (site, date)
);
CREATE INDEX IF NOT EXISTS idx_activity_notes_date ON activity_notes(date);
`
