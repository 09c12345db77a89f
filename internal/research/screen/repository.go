package screen

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/domain"
)

// Repository persists screen results in research.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new screen repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "screens").Logger(),
	}
}

// Save stores a screen result. Universe, rows and rejections are serialized
// to JSON columns.
func (r *Repository) Save(result *domain.ScreenResult) error {
	universe, err := json.Marshal(result.Universe)
	if err != nil {
		return fmt.Errorf("failed to marshal screen universe: %w", err)
	}
	rows, err := json.Marshal(result.Rows)
	if err != nil {
		return fmt.Errorf("failed to marshal screen rows: %w", err)
	}
	rejections, err := json.Marshal(result.Rejections)
	if err != nil {
		return fmt.Errorf("failed to marshal screen rejections: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO screens (id, universe, min_fcf_yield, min_roic, rows_json, rejections_json, body, path, archive_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, string(universe), result.MinFCFYield, result.MinROIC,
		string(rows), string(rejections), result.Body, result.Path, result.ArchiveURL,
		result.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save screen %s: %w", result.ID, err)
	}

	r.log.Debug().Str("id", result.ID).Int("passed", len(result.Rows)).Msg("Screen saved")
	return nil
}

// UpdateArtifacts records the out file path and archive URL.
func (r *Repository) UpdateArtifacts(id, path, archiveURL string) error {
	_, err := r.db.Exec(`UPDATE screens SET path = ?, archive_url = ? WHERE id = ?`,
		path, archiveURL, id)
	if err != nil {
		return fmt.Errorf("failed to update screen artifacts for %s: %w", id, err)
	}
	return nil
}

// Latest returns the most recent screen result. Returns sql.ErrNoRows when
// no screen has run yet.
func (r *Repository) Latest() (*domain.ScreenResult, error) {
	row := r.db.QueryRow(`
		SELECT id, universe, min_fcf_yield, min_roic, rows_json, rejections_json, body, path, archive_url, created_at
		FROM screens ORDER BY created_at DESC, id LIMIT 1`)

	var result domain.ScreenResult
	var universe, rowsJSON, rejectionsJSON string
	var path, archiveURL sql.NullString
	var createdAt int64

	err := row.Scan(&result.ID, &universe, &result.MinFCFYield, &result.MinROIC,
		&rowsJSON, &rejectionsJSON, &result.Body, &path, &archiveURL, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan screen: %w", err)
	}

	if err := json.Unmarshal([]byte(universe), &result.Universe); err != nil {
		return nil, fmt.Errorf("failed to unmarshal screen universe: %w", err)
	}
	if err := json.Unmarshal([]byte(rowsJSON), &result.Rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal screen rows: %w", err)
	}
	if err := json.Unmarshal([]byte(rejectionsJSON), &result.Rejections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal screen rejections: %w", err)
	}
	result.Path = path.String
	result.ArchiveURL = archiveURL.String
	result.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &result, nil
}
