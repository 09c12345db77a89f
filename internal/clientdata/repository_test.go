package clientdata

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// testSchema creates all tables needed for testing
const testSchema = `
CREATE TABLE yahoo_snapshots (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE edgar_cik (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE edgar_documents (url TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);

CREATE INDEX idx_yahoo_snapshots_expires ON yahoo_snapshots(expires_at);
CREATE INDEX idx_edgar_cik_expires ON edgar_cik(expires_at);
CREATE INDEX idx_edgar_documents_expires ON edgar_documents(expires_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

// mustPack serializes a value the same way Store does, for direct inserts.
func mustPack(t *testing.T, v interface{}) []byte {
	blob, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return blob
}

func TestNewRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	assert.NotNil(t, repo)
}

func TestStore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	data := map[string]string{
		"name":   "Apple Inc.",
		"ticker": "AAPL",
	}

	err := repo.Store(TableYahooSnapshots, "AAPL", data, 24*time.Hour)
	require.NoError(t, err)

	var blob []byte
	var expiresAt int64
	err = db.QueryRow("SELECT data, expires_at FROM yahoo_snapshots WHERE ticker = ?", "AAPL").Scan(&blob, &expiresAt)
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, msgpack.Unmarshal(blob, &parsed))
	assert.Equal(t, "Apple Inc.", parsed["name"])
	assert.Equal(t, "AAPL", parsed["ticker"])

	// Expiration should be roughly 24 hours from now
	expectedExpires := time.Now().Add(24 * time.Hour).Unix()
	assert.InDelta(t, expectedExpires, expiresAt, 5)
}

func TestStoreUpsert(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	err := repo.Store(TableEdgarCIK, "AAPL", map[string]string{"cik": "0000320193"}, time.Hour)
	require.NoError(t, err)

	err = repo.Store(TableEdgarCIK, "AAPL", map[string]string{"cik": "0000999999"}, time.Hour)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM edgar_cik WHERE ticker = ?", "AAPL").Scan(&count))
	assert.Equal(t, 1, count)

	blob, err := repo.GetIfFresh(TableEdgarCIK, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, blob)

	var parsed map[string]string
	require.NoError(t, msgpack.Unmarshal(blob, &parsed))
	assert.Equal(t, "0000999999", parsed["cik"])
}

func TestGetIfFresh_Fresh(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	err := repo.Store(TableYahooSnapshots, "MSFT", map[string]string{"status": "fresh"}, time.Hour)
	require.NoError(t, err)

	blob, err := repo.GetIfFresh(TableYahooSnapshots, "MSFT")
	require.NoError(t, err)
	require.NotNil(t, blob)

	var parsed map[string]string
	require.NoError(t, msgpack.Unmarshal(blob, &parsed))
	assert.Equal(t, "fresh", parsed["status"])
}

func TestGetIfFresh_Expired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	expiredAt := time.Now().Add(-time.Hour).Unix()
	_, err := db.Exec(
		"INSERT INTO yahoo_snapshots (ticker, data, expires_at) VALUES (?, ?, ?)",
		"MSFT", mustPack(t, map[string]string{"status": "expired"}), expiredAt,
	)
	require.NoError(t, err)

	blob, err := repo.GetIfFresh(TableYahooSnapshots, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, blob, "Expected nil for expired data")
}

func TestGet_ReturnsStaleData(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	expiredAt := time.Now().Add(-time.Hour).Unix()
	_, err := db.Exec(
		"INSERT INTO yahoo_snapshots (ticker, data, expires_at) VALUES (?, ?, ?)",
		"MSFT", mustPack(t, map[string]string{"status": "stale_but_useful"}), expiredAt,
	)
	require.NoError(t, err)

	blob, err := repo.GetIfFresh(TableYahooSnapshots, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, blob, "GetIfFresh should return nil for expired data")

	// Get should return the stale data (useful when the upstream fails)
	blob, err = repo.Get(TableYahooSnapshots, "MSFT")
	require.NoError(t, err)
	require.NotNil(t, blob)

	var parsed map[string]string
	require.NoError(t, msgpack.Unmarshal(blob, &parsed))
	assert.Equal(t, "stale_but_useful", parsed["status"])
}

func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	blob, err := repo.Get(TableYahooSnapshots, "NONEXISTENT")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestGetInto(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	type snapshot struct {
		Ticker string  `msgpack:"ticker"`
		Price  float64 `msgpack:"price"`
	}

	err := repo.Store(TableYahooSnapshots, "AAPL", snapshot{Ticker: "AAPL", Price: 180.5}, time.Hour)
	require.NoError(t, err)

	var got snapshot
	found, err := repo.GetInto(TableYahooSnapshots, "AAPL", true, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "AAPL", got.Ticker)
	assert.Equal(t, 180.5, got.Price)

	found, err = repo.GetInto(TableYahooSnapshots, "MISSING", true, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInto_StaleFallback(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	expiredAt := time.Now().Add(-time.Hour).Unix()
	_, err := db.Exec(
		"INSERT INTO edgar_cik (ticker, data, expires_at) VALUES (?, ?, ?)",
		"AAPL", mustPack(t, map[string]string{"cik": "0000320193"}), expiredAt,
	)
	require.NoError(t, err)

	var got map[string]string
	found, err := repo.GetInto(TableEdgarCIK, "AAPL", true, &got)
	require.NoError(t, err)
	assert.False(t, found, "Fresh lookup should miss on expired rows")

	found, err = repo.GetInto(TableEdgarCIK, "AAPL", false, &got)
	require.NoError(t, err)
	require.True(t, found, "Stale lookup should hit expired rows")
	assert.Equal(t, "0000320193", got["cik"])
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	err := repo.Store(TableEdgarDocuments, "https://example.com/10k.htm", map[string]string{"text": "body"}, time.Hour)
	require.NoError(t, err)

	blob, err := repo.GetIfFresh(TableEdgarDocuments, "https://example.com/10k.htm")
	require.NoError(t, err)
	require.NotNil(t, blob)

	require.NoError(t, repo.Delete(TableEdgarDocuments, "https://example.com/10k.htm"))

	blob, err = repo.GetIfFresh(TableEdgarDocuments, "https://example.com/10k.htm")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestDeleteNonExistent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Delete(TableEdgarDocuments, "https://example.com/missing.htm"))
}

func TestDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	now := time.Now()
	expiredAt := now.Add(-time.Hour).Unix()
	freshAt := now.Add(time.Hour).Unix()

	rows := []struct {
		url       string
		expiresAt int64
	}{
		{"https://example.com/a.htm", expiredAt},
		{"https://example.com/b.htm", expiredAt},
		{"https://example.com/c.htm", expiredAt},
		{"https://example.com/d.htm", freshAt},
		{"https://example.com/e.htm", freshAt},
	}
	for _, row := range rows {
		_, err := db.Exec(
			"INSERT INTO edgar_documents (url, data, expires_at) VALUES (?, ?, ?)",
			row.url, mustPack(t, map[string]string{}), row.expiresAt,
		)
		require.NoError(t, err)
	}

	deleted, err := repo.DeleteExpired(TableEdgarDocuments)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM edgar_documents").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestDeleteExpiredEmptyTable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	deleted, err := repo.DeleteExpired(TableEdgarDocuments)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestDeleteAllExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	now := time.Now()
	expiredAt := now.Add(-time.Hour).Unix()
	freshAt := now.Add(time.Hour).Unix()
	empty := mustPack(t, map[string]string{})

	_, err := db.Exec("INSERT INTO yahoo_snapshots (ticker, data, expires_at) VALUES (?, ?, ?)", "AAPL", empty, expiredAt)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO yahoo_snapshots (ticker, data, expires_at) VALUES (?, ?, ?)", "MSFT", empty, freshAt)
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO edgar_cik (ticker, data, expires_at) VALUES (?, ?, ?)", "AAPL", empty, expiredAt)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO edgar_cik (ticker, data, expires_at) VALUES (?, ?, ?)", "MSFT", empty, expiredAt)
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO edgar_documents (url, data, expires_at) VALUES (?, ?, ?)", "https://example.com/a.htm", empty, freshAt)
	require.NoError(t, err)

	results, err := repo.DeleteAllExpired()
	require.NoError(t, err)

	assert.Equal(t, int64(1), results[TableYahooSnapshots])
	assert.Equal(t, int64(2), results[TableEdgarCIK])
	assert.Equal(t, int64(0), results[TableEdgarDocuments])

	var count int
	db.QueryRow("SELECT COUNT(*) FROM yahoo_snapshots").Scan(&count)
	assert.Equal(t, 1, count)

	db.QueryRow("SELECT COUNT(*) FROM edgar_cik").Scan(&count)
	assert.Equal(t, 0, count)

	db.QueryRow("SELECT COUNT(*) FROM edgar_documents").Scan(&count)
	assert.Equal(t, 1, count)
}

func TestGetKeyColumn(t *testing.T) {
	tests := []struct {
		table    string
		expected string
	}{
		{TableYahooSnapshots, "ticker"},
		{TableEdgarCIK, "ticker"},
		{TableEdgarDocuments, "url"},
	}

	for _, tc := range tests {
		t.Run(tc.table, func(t *testing.T) {
			assert.Equal(t, tc.expected, getKeyColumn(tc.table))
		})
	}
}

func TestInvalidTableName(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	t.Run("Store", func(t *testing.T) {
		err := repo.Store("invalid_table; DROP TABLE edgar_cik;--", "key", map[string]string{}, time.Hour)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")
	})

	t.Run("GetIfFresh", func(t *testing.T) {
		_, err := repo.GetIfFresh("users", "key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")
	})

	t.Run("Get", func(t *testing.T) {
		_, err := repo.Get("passwords", "key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")
	})

	t.Run("Delete", func(t *testing.T) {
		err := repo.Delete("secrets", "key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		_, err := repo.DeleteExpired("nonexistent")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid table name")
	})
}

func TestValidateTable(t *testing.T) {
	for _, table := range AllTables {
		t.Run(table, func(t *testing.T) {
			assert.NoError(t, validateTable(table))
		})
	}
}
