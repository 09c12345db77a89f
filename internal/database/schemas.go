package database

// Schemas are embedded so a fresh deployment needs no schema files on disk.
// Every statement is idempotent.

// ResearchSchema holds generated research artifacts (research.db).
const ResearchSchema = `
CREATE TABLE IF NOT EXISTS memos (
    id TEXT PRIMARY KEY,
    ticker TEXT NOT NULL,
    body TEXT NOT NULL,
    sections TEXT NOT NULL DEFAULT '{}',
    path TEXT,
    archive_url TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memos_ticker ON memos(ticker);
CREATE INDEX IF NOT EXISTS idx_memos_created_at ON memos(created_at);

CREATE TABLE IF NOT EXISTS screens (
    id TEXT PRIMARY KEY,
    universe TEXT NOT NULL,
    min_fcf_yield REAL NOT NULL,
    min_roic REAL NOT NULL,
    rows_json TEXT NOT NULL DEFAULT '[]',
    rejections_json TEXT NOT NULL DEFAULT '[]',
    body TEXT NOT NULL,
    path TEXT,
    archive_url TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_screens_created_at ON screens(created_at);
`

// CacheSchema holds fetched upstream data with expiry (cache.db). Values are
// msgpack blobs; expires_at is a unix timestamp.
const CacheSchema = `
CREATE TABLE IF NOT EXISTS yahoo_snapshots (
    ticker TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS edgar_cik (
    ticker TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS edgar_documents (
    url TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_yahoo_snapshots_expires ON yahoo_snapshots(expires_at);
CREATE INDEX IF NOT EXISTS idx_edgar_cik_expires ON edgar_cik(expires_at);
CREATE INDEX IF NOT EXISTS idx_edgar_documents_expires ON edgar_documents(expires_at);
`

// schemas maps database names (Config.Name) to their embedded schema.
var schemas = map[string]string{
	"research": ResearchSchema,
	"cache":    CacheSchema,
}
