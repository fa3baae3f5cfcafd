package store

// Schema is the complete monitoring schema. Product upserts are keyed by
// product_id; price_history and price_changes are pure inserts, so
// re-running a cycle after partial failure can duplicate history rows.
// monitoring_stats is keyed by cycle and safe to re-run.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
    product_id  TEXT PRIMARY KEY,
    url         TEXT NOT NULL DEFAULT '',
    name        TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS price_history (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id      TEXT NOT NULL,
    price           REAL NOT NULL,
    price_formatted TEXT NOT NULL DEFAULT '',
    currency        TEXT NOT NULL DEFAULT 'RUB',
    source          TEXT NOT NULL DEFAULT '',
    cycle           INTEGER NOT NULL DEFAULT 0,
    observed_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history(product_id, observed_at DESC);
CREATE INDEX IF NOT EXISTS idx_price_history_time ON price_history(observed_at DESC);

CREATE TABLE IF NOT EXISTS price_changes (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id        TEXT NOT NULL,
    current_price     REAL,
    previous_price    REAL,
    change_amount     REAL,
    change_percentage REAL,
    change_status     TEXT NOT NULL DEFAULT 'no_change',
    significance      TEXT NOT NULL DEFAULT '',
    cycle             INTEGER NOT NULL DEFAULT 0,
    observed_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_changes_product ON price_changes(product_id);
CREATE INDEX IF NOT EXISTS idx_price_changes_status ON price_changes(change_status, observed_at DESC);

CREATE TABLE IF NOT EXISTS monitoring_stats (
    cycle             INTEGER PRIMARY KEY,
    total_products    INTEGER NOT NULL DEFAULT 0,
    successful_parses INTEGER NOT NULL DEFAULT 0,
    failed_parses     INTEGER NOT NULL DEFAULT 0,
    price_changes     INTEGER NOT NULL DEFAULT 0,
    increased         INTEGER NOT NULL DEFAULT 0,
    decreased         INTEGER NOT NULL DEFAULT 0,
    new_products      INTEGER NOT NULL DEFAULT 0,
    recorded_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS html_pages (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id     TEXT NOT NULL,
    filename       TEXT NOT NULL DEFAULT '',
    markup         TEXT NOT NULL DEFAULT '',
    content_length INTEGER NOT NULL DEFAULT 0,
    status_code    INTEGER NOT NULL DEFAULT 0,
    cycle          INTEGER NOT NULL DEFAULT 0,
    fetched_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_html_pages_product ON html_pages(product_id, fetched_at DESC);
`
