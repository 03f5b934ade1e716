package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS trash_items (
    id            TEXT PRIMARY KEY,
    original_path TEXT NOT NULL,
    trash_path    TEXT NOT NULL,
    deleted_at    INTEGER NOT NULL,
    expires_at    INTEGER NOT NULL,
    size          INTEGER NOT NULL DEFAULT 0,
    item_type     TEXT NOT NULL,
    category      TEXT NOT NULL DEFAULT '',
    kind          TEXT NOT NULL DEFAULT '',
    risk_level    INTEGER NOT NULL DEFAULT 0,
    reason        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_trash_expires ON trash_items(expires_at);
CREATE INDEX IF NOT EXISTS idx_trash_deleted ON trash_items(deleted_at, id);

CREATE TABLE IF NOT EXISTS disk_history (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    category  TEXT NOT NULL,
    ts        INTEGER NOT NULL,
    size      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_category_ts ON disk_history(category, ts);
`
