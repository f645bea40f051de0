package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type TagRepositoryImpl struct {
	db *DB
}

var _ TagRepository = (*TagRepositoryImpl)(nil)

func NewTagRepository(db *DB) *TagRepositoryImpl {
	return &TagRepositoryImpl{db: db}
}

func (r *TagRepositoryImpl) GetTags(taggableType string, taggableID int64) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT name FROM tags
		WHERE taggable_type = ? AND taggable_id = ?
		ORDER BY name
	`, taggableType, taggableID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *TagRepositoryImpl) AddTags(taggableType string, taggableID int64, names []string) error {
	now := timeToDB(time.Now())
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		_, err := r.db.Exec(`
			INSERT INTO tags (taggable_type, taggable_id, name, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (taggable_type, taggable_id, name) DO NOTHING
		`, taggableType, taggableID, name, now)
		if err != nil {
			return fmt.Errorf("failed to add tag %q: %w", name, err)
		}
	}
	return nil
}

func (r *TagRepositoryImpl) EarliestTagged(name string) (*time.Time, error) {
	var earliest sql.NullString
	err := r.db.QueryRow(`
		SELECT MIN(created_at) FROM tags WHERE name = ?
	`, strings.ToLower(name)).Scan(&earliest)
	if err != nil {
		return nil, fmt.Errorf("failed to find earliest tagged record: %w", err)
	}
	return timePtrFromDB(earliest), nil
}
