package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS transfers (
    transfer_uid         TEXT PRIMARY KEY,
    account_uid          TEXT NOT NULL,
    goal_uid             TEXT NOT NULL,
    minor_units          INTEGER NOT NULL,
    currency             TEXT NOT NULL,
    week_index           INTEGER NOT NULL DEFAULT 0,
    outcome              TEXT NOT NULL,
    error                TEXT,
    recorded_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transfers_recorded ON transfers(recorded_at);
CREATE INDEX IF NOT EXISTS idx_transfers_goal ON transfers(goal_uid);
`
