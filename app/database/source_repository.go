package database

import (
	"database/sql"
	"fmt"
	"time"
)

type SourceRepositoryImpl struct {
	db *DB
}

var _ SourceRepository = (*SourceRepositoryImpl)(nil)

func NewSourceRepository(db *DB) *SourceRepositoryImpl {
	return &SourceRepositoryImpl{db: db}
}

const sourceColumns = `id, title, url, format_type, enabled, reimport_interval,
	extract_descriptions, last_imported_at, next_import_at, created_at, updated_at`

func (r *SourceRepositoryImpl) GetSource(id int64) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

func (r *SourceRepositoryImpl) GetSourceByURL(url string) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE url = ?`, url)
	return scanSource(row)
}

func (r *SourceRepositoryImpl) ListSources() ([]Source, error) {
	rows, err := r.db.Query(`SELECT ` + sourceColumns + ` FROM sources ORDER BY title, url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

// GetDueSources returns enabled sources whose next import is due.
func (r *SourceRepositoryImpl) GetDueSources(now time.Time) ([]Source, error) {
	rows, err := r.db.Query(`
		SELECT `+sourceColumns+`
		FROM sources
		WHERE enabled = 1
		  AND (next_import_at IS NULL OR next_import_at <= ?)
		ORDER BY next_import_at
	`, timeToDB(now))
	if err != nil {
		return nil, fmt.Errorf("failed to get due sources: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

func (r *SourceRepositoryImpl) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return count, nil
}

// UpsertSource inserts the source, or updates the existing row with the same
// URL. The record's ID and timestamps are filled in either way.
func (r *SourceRepositoryImpl) UpsertSource(s *Source) error {
	now := time.Now().UTC()

	err := r.db.QueryRow(`
		INSERT INTO sources (title, url, format_type, enabled, reimport_interval,
			extract_descriptions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			title = excluded.title,
			format_type = excluded.format_type,
			enabled = excluded.enabled,
			reimport_interval = excluded.reimport_interval,
			extract_descriptions = excluded.extract_descriptions,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`, s.Title, s.URL, s.FormatType, s.Enabled, s.ReimportInterval,
		s.ExtractDescriptions, timeToDB(now), timeToDB(now)).Scan(&s.ID, &scanTime{&s.CreatedAt})
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	s.UpdatedAt = now
	return nil
}

func (r *SourceRepositoryImpl) UpdateImportTimes(id int64, lastImportedAt, nextImportAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET last_imported_at = ?, next_import_at = ?, updated_at = ?
		WHERE id = ?
	`, timeToDB(lastImportedAt), timeToDB(nextImportAt), timeToDB(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update import times: %w", err)
	}
	return nil
}

func (r *SourceRepositoryImpl) DeleteSource(id int64) error {
	_, err := r.db.Exec(`DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}

// scanTime adapts a time.Time field to database/sql scanning of TEXT columns.
type scanTime struct {
	t *time.Time
}

func (s *scanTime) Scan(v any) error {
	switch val := v.(type) {
	case string:
		*s.t = timeFromDB(val)
	case []byte:
		*s.t = timeFromDB(string(val))
	case time.Time:
		*s.t = val.UTC()
	case nil:
		*s.t = time.Time{}
	default:
		return fmt.Errorf("cannot scan %T as time", v)
	}
	return nil
}

func scanSource(row *sql.Row) (*Source, error) {
	var s Source
	var lastImported, nextImport sql.NullString
	err := row.Scan(&s.ID, &s.Title, &s.URL, &s.FormatType, &s.Enabled,
		&s.ReimportInterval, &s.ExtractDescriptions, &lastImported, &nextImport,
		&scanTime{&s.CreatedAt}, &scanTime{&s.UpdatedAt})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}
	s.LastImportedAt = timePtrFromDB(lastImported)
	s.NextImportAt = timePtrFromDB(nextImport)
	return &s, nil
}

func scanSources(rows *sql.Rows) ([]Source, error) {
	var sources []Source
	for rows.Next() {
		var s Source
		var lastImported, nextImport sql.NullString
		err := rows.Scan(&s.ID, &s.Title, &s.URL, &s.FormatType, &s.Enabled,
			&s.ReimportInterval, &s.ExtractDescriptions, &lastImported, &nextImport,
			&scanTime{&s.CreatedAt}, &scanTime{&s.UpdatedAt})
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		s.LastImportedAt = timePtrFromDB(lastImported)
		s.NextImportAt = timePtrFromDB(nextImport)
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
