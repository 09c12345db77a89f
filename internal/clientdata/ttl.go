package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Very stable data (rarely changes)
	TTLEdgarCIK = 30 * 24 * time.Hour // 30 days - ticker-to-CIK mappings rarely change

	// Filing documents are immutable once published, but we cap retention so
	// cache.db does not grow without bound.
	TTLEdgarDocument = 7 * 24 * time.Hour // 7 days

	// Fundamentals snapshots refresh daily by default; the configured
	// SNAPSHOT_TTL_HOURS overrides this at wiring time.
	TTLYahooSnapshot = 24 * time.Hour
)
