package database

import (
	"database/sql"
	"fmt"
	"time"
)

type EventRepositoryImpl struct {
	db *DB
}

var _ EventRepository = (*EventRepositoryImpl)(nil)

func NewEventRepository(db *DB) *EventRepositoryImpl {
	return &EventRepositoryImpl{db: db}
}

const eventColumns = `id, title, description, url, start_time, end_time,
	COALESCE(venue_id, 0), venue_details, COALESCE(source_id, 0),
	COALESCE(duplicate_of_id, 0), created_at, updated_at`

func (r *EventRepositoryImpl) GetEvent(id int64) (*Event, error) {
	rows, err := r.db.Query(`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// ListEvents returns primary events starting at or after the given time.
// Duplicates are excluded from default listings.
func (r *EventRepositoryImpl) ListEvents(after time.Time, limit int) ([]Event, error) {
	rows, err := r.db.Query(`
		SELECT `+eventColumns+`
		FROM events
		WHERE duplicate_of_id IS NULL
		  AND (end_time >= ? OR (end_time IS NULL AND start_time >= ?))
		ORDER BY start_time
		LIMIT ?
	`, timeToDB(after), timeToDB(after), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *EventRepositoryImpl) ListEventsBySource(sourceID int64) ([]Event, error) {
	rows, err := r.db.Query(`
		SELECT `+eventColumns+`
		FROM events
		WHERE source_id = ? AND duplicate_of_id IS NULL
		ORDER BY start_time
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by source: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *EventRepositoryImpl) GetEventCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM events WHERE duplicate_of_id IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (r *EventRepositoryImpl) CreateEvent(e *Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	err := r.db.QueryRow(`
		INSERT INTO events (title, description, url, start_time, end_time,
			venue_id, venue_details, source_id, duplicate_of_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, e.Title, e.Description, e.URL, timeToDB(e.StartTime), timePtrToDB(e.EndTime),
		nullableID(e.VenueID), e.VenueDetails, nullableID(e.SourceID),
		nullableID(e.DuplicateOfID), timeToDB(now), timeToDB(now)).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

func (r *EventRepositoryImpl) UpdateEvent(e *Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	_, err := r.db.Exec(`
		UPDATE events
		SET title = ?, description = ?, url = ?, start_time = ?, end_time = ?,
			venue_id = ?, venue_details = ?, source_id = ?, duplicate_of_id = ?,
			updated_at = ?
		WHERE id = ?
	`, e.Title, e.Description, e.URL, timeToDB(e.StartTime), timePtrToDB(e.EndTime),
		nullableID(e.VenueID), e.VenueDetails, nullableID(e.SourceID),
		nullableID(e.DuplicateOfID), timeToDB(time.Now()), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

func (r *EventRepositoryImpl) DeleteEvent(id int64) error {
	_, err := r.db.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// GetEventsForEnrichment returns events from a source that have a URL but no
// description yet.
func (r *EventRepositoryImpl) GetEventsForEnrichment(sourceID int64, limit int) ([]Event, error) {
	rows, err := r.db.Query(`
		SELECT `+eventColumns+`
		FROM events
		WHERE source_id = ?
		  AND duplicate_of_id IS NULL
		  AND url != ''
		  AND description = ''
		ORDER BY start_time
		LIMIT ?
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for enrichment: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *EventRepositoryImpl) UpdateEventDescription(id int64, description string) error {
	_, err := r.db.Exec(`
		UPDATE events SET description = ?, updated_at = ? WHERE id = ?
	`, description, timeToDB(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update event description: %w", err)
	}
	return nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var endTime sql.NullString
		err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.URL,
			&scanTime{&e.StartTime}, &endTime, &e.VenueID, &e.VenueDetails,
			&e.SourceID, &e.DuplicateOfID, &scanTime{&e.CreatedAt}, &scanTime{&e.UpdatedAt})
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.EndTime = timePtrFromDB(endTime)
		events = append(events, e)
	}
	return events, rows.Err()
}
