// Package clientdata provides persistent caching for external API client responses.
// All data is stored as msgpack blobs with expiration timestamps for cache-first behavior.
package clientdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Table names in cache.db. Clients own their tables; the cleanup job sweeps
// all of them.
const (
	TableYahooSnapshots = "yahoo_snapshots"
	TableEdgarCIK       = "edgar_cik"
	TableEdgarDocuments = "edgar_documents"
)

// AllTables lists all tables in cache.db for cleanup operations.
var AllTables = []string{
	TableYahooSnapshots,
	TableEdgarCIK,
	TableEdgarDocuments,
}

// validTables is a set for O(1) table name validation.
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Repository provides cache operations for client data.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// validateTable ensures the table name is in our allowed list.
// This prevents SQL injection through table names.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// getKeyColumn returns the primary key column name for a table.
// Most tables are keyed by ticker; document caches key on URL.
func getKeyColumn(table string) string {
	switch table {
	case TableEdgarDocuments:
		return "url"
	default:
		return "ticker"
	}
}

// Store saves data with expiration = now + ttl.
// Uses INSERT OR REPLACE to upsert data.
func (r *Repository) Store(table, key string, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	blob, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()
	keyCol := getKeyColumn(table)

	// INSERT OR REPLACE for upsert behavior
	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s, data, expires_at) VALUES (?, ?, ?)",
		table, keyCol,
	)

	if _, err := r.db.Exec(query, key, blob, expiresAt); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh returns the stored blob only if expires_at > now, nil otherwise.
// Returns nil, nil if the key doesn't exist or data is expired.
// Use Get() to retrieve stale data as a fallback when API calls fail.
func (r *Repository) GetIfFresh(table, key string) ([]byte, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	keyCol := getKeyColumn(table)
	now := time.Now().Unix()

	query := fmt.Sprintf(
		"SELECT data FROM %s WHERE %s = ? AND expires_at > ?",
		table, keyCol,
	)

	var blob []byte
	err := r.db.QueryRow(query, key, now).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return blob, nil
}

// Get returns the stored blob regardless of expiration status.
// Use this as a fallback when API calls fail - stale data is better than no data.
// Returns nil, nil if the key doesn't exist.
func (r *Repository) Get(table, key string) ([]byte, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	keyCol := getKeyColumn(table)

	query := fmt.Sprintf(
		"SELECT data FROM %s WHERE %s = ?",
		table, keyCol,
	)

	var blob []byte
	err := r.db.QueryRow(query, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	return blob, nil
}

// GetInto unmarshals the stored blob into dst. Found reports whether a row
// existed (fresh or not, per the fresh flag).
func (r *Repository) GetInto(table, key string, fresh bool, dst interface{}) (found bool, err error) {
	var blob []byte
	if fresh {
		blob, err = r.GetIfFresh(table, key)
	} else {
		blob, err = r.Get(table, key)
	}
	if err != nil || blob == nil {
		return false, err
	}

	if err := msgpack.Unmarshal(blob, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal data from %s: %w", table, err)
	}
	return true, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	keyCol := getKeyColumn(table)

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyCol)

	if _, err := r.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

// DeleteExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	now := time.Now().Unix()

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)

	result, err := r.db.Exec(query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return deleted, nil
}

// DeleteAllExpired removes all expired entries from all tables.
// Returns a map of table name to number of rows deleted.
func (r *Repository) DeleteAllExpired() (map[string]int64, error) {
	results := make(map[string]int64)

	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(table)
		if err != nil {
			return results, fmt.Errorf("failed to delete expired from %s: %w", table, err)
		}
		results[table] = deleted
	}

	return results, nil
}
