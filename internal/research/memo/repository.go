package memo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/domain"
)

// Repository persists memos in research.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new memo repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "memos").Logger(),
	}
}

// Save stores a memo. Sections are serialized to JSON; created_at is stored
// as a unix timestamp.
func (r *Repository) Save(m *domain.Memo) error {
	sections, err := json.Marshal(m.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal memo sections: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO memos (id, ticker, body, sections, path, archive_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Ticker, m.Body, string(sections), m.Path, m.ArchiveURL, m.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save memo %s: %w", m.ID, err)
	}

	r.log.Debug().Str("id", m.ID).Str("ticker", m.Ticker).Msg("Memo saved")
	return nil
}

// UpdateArtifacts records the out file path and archive URL once the memo
// has been written out. Both may be empty.
func (r *Repository) UpdateArtifacts(id, path, archiveURL string) error {
	_, err := r.db.Exec(`UPDATE memos SET path = ?, archive_url = ? WHERE id = ?`,
		path, archiveURL, id)
	if err != nil {
		return fmt.Errorf("failed to update memo artifacts for %s: %w", id, err)
	}
	return nil
}

// Get fetches one memo by id. Returns sql.ErrNoRows when absent.
func (r *Repository) Get(id string) (*domain.Memo, error) {
	row := r.db.QueryRow(`
		SELECT id, ticker, body, sections, path, archive_url, created_at
		FROM memos WHERE id = ?`, id)
	return scanMemo(row)
}

// List returns the most recent memos, newest first.
func (r *Repository) List(limit int) ([]*domain.Memo, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, ticker, body, sections, path, archive_url, created_at
		FROM memos ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list memos: %w", err)
	}
	defer rows.Close()

	var memos []*domain.Memo
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		memos = append(memos, m)
	}
	return memos, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemo(s scanner) (*domain.Memo, error) {
	var m domain.Memo
	var sections string
	var path, archiveURL sql.NullString
	var createdAt int64

	if err := s.Scan(&m.ID, &m.Ticker, &m.Body, &sections, &path, &archiveURL, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan memo: %w", err)
	}

	if err := json.Unmarshal([]byte(sections), &m.Sections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memo sections: %w", err)
	}
	m.Path = path.String
	m.ArchiveURL = archiveURL.String
	m.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &m, nil
}
