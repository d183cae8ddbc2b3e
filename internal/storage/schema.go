package storage

const schema = `
-- One scheduling record per (owner, subject) pair. Timestamps are stored as
-- Unix seconds so range queries and ordering are exact across drivers.
CREATE TABLE IF NOT EXISTS cards (
    owner          TEXT NOT NULL,
    subject_id     TEXT NOT NULL,
    ease_factor    REAL NOT NULL DEFAULT 2.5,
    interval       INTEGER NOT NULL DEFAULT 0,
    repetitions    INTEGER NOT NULL DEFAULT 0,
    next_review_at INTEGER NOT NULL,
    last_review_at INTEGER,
    total_reviews  INTEGER NOT NULL DEFAULT 0,
    correct_count  INTEGER NOT NULL DEFAULT 0,
    category       TEXT NOT NULL DEFAULT '',
    tier           INTEGER NOT NULL DEFAULT 0,
    created_at     INTEGER NOT NULL,

    PRIMARY KEY (owner, subject_id)
);

CREATE INDEX IF NOT EXISTS idx_cards_due
    ON cards (owner, next_review_at, repetitions);

-- "New" means never attempted: repetitions = 0 AND total_reviews = 0.
CREATE INDEX IF NOT EXISTS idx_cards_new
    ON cards (owner, created_at)
    WHERE repetitions = 0 AND total_reviews = 0;
`
