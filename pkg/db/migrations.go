package db

// migrationsSQL is idempotent; InitDB runs it on every open.
const migrationsSQL = `
CREATE TABLE IF NOT EXISTS kv_records (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS update_runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ran_at     TIMESTAMP NOT NULL,
	watermark  TIMESTAMP NOT NULL,
	eligible   INTEGER NOT NULL,
	matched    INTEGER NOT NULL,
	added      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_update_runs_ran_at ON update_runs(ran_at);
`
