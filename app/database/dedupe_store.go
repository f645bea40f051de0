package database

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eventcomb/eventcomb/app/dedupe"
)

// DedupeStore adapts the event and venue tables to the duplicate checking
// engine's store interface.
type DedupeStore struct {
	db *DB
}

var _ dedupe.Store = (*DedupeStore)(nil)

func NewDedupeStore(db *DB) *DedupeStore {
	return &DedupeStore{db: db}
}

// Columns allowed in attribute-equality queries, per kind. Anything else in
// an attribute map is a programming error.
var dedupeColumns = map[string]map[string]bool{
	KindEvent: {
		"title": true, "description": true, "url": true, "start_time": true,
		"end_time": true, "venue_id": true, "venue_details": true,
	},
	KindVenue: {
		"title": true, "description": true, "address": true, "street_address": true,
		"locality": true, "region": true, "postal_code": true, "country": true,
		"email": true, "telephone": true, "url": true,
	},
}

func (s *DedupeStore) Get(kind string, id int64) (dedupe.Record, error) {
	switch kind {
	case KindEvent:
		e, err := NewEventRepository(s.db).GetEvent(id)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, fmt.Errorf("event %d not found", id)
		}
		return e, nil
	case KindVenue:
		v, err := NewVenueRepository(s.db).GetVenue(id)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, fmt.Errorf("venue %d not found", id)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

func (s *DedupeStore) FindByAttributes(kind string, attrs map[string]any) ([]dedupe.Record, error) {
	allowed, ok := dedupeColumns[kind]
	if !ok {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}

	// Deterministic clause order keeps query plans and tests stable.
	cols := make([]string, 0, len(attrs))
	for col := range attrs {
		if !allowed[col] {
			return nil, fmt.Errorf("column %q not allowed for %s duplicate matching", col, kind)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	clauses := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		if attrs[col] == nil {
			clauses = append(clauses, col+" IS NULL")
			continue
		}
		clauses = append(clauses, col+" = ?")
		args = append(args, attrs[col])
	}

	where := strings.Join(clauses, " AND ")
	switch kind {
	case KindEvent:
		rows, err := s.db.Query(`SELECT `+eventColumns+` FROM events WHERE `+where, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query events by attributes: %w", err)
		}
		defer rows.Close()
		events, err := scanEvents(rows)
		if err != nil {
			return nil, err
		}
		return eventRecords(events), nil
	case KindVenue:
		rows, err := s.db.Query(`SELECT `+venueColumns+` FROM venues WHERE `+where, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query venues by attributes: %w", err)
		}
		defer rows.Close()
		venues, err := scanVenues(rows)
		if err != nil {
			return nil, err
		}
		return venueRecords(venues), nil
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

func (s *DedupeStore) Primaries(kind string) ([]dedupe.Record, error) {
	switch kind {
	case KindEvent:
		rows, err := s.db.Query(`SELECT ` + eventColumns + ` FROM events WHERE duplicate_of_id IS NULL`)
		if err != nil {
			return nil, fmt.Errorf("failed to list primary events: %w", err)
		}
		defer rows.Close()
		events, err := scanEvents(rows)
		if err != nil {
			return nil, err
		}
		return eventRecords(events), nil
	case KindVenue:
		rows, err := s.db.Query(`SELECT ` + venueColumns + ` FROM venues WHERE duplicate_of_id IS NULL`)
		if err != nil {
			return nil, fmt.Errorf("failed to list primary venues: %w", err)
		}
		defer rows.Close()
		venues, err := scanVenues(rows)
		if err != nil {
			return nil, err
		}
		return venueRecords(venues), nil
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

func (s *DedupeStore) DuplicatesOf(kind string, id int64) ([]dedupe.Record, error) {
	switch kind {
	case KindEvent:
		rows, err := s.db.Query(`SELECT `+eventColumns+` FROM events WHERE duplicate_of_id = ?`, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list event duplicates: %w", err)
		}
		defer rows.Close()
		events, err := scanEvents(rows)
		if err != nil {
			return nil, err
		}
		return eventRecords(events), nil
	case KindVenue:
		rows, err := s.db.Query(`SELECT `+venueColumns+` FROM venues WHERE duplicate_of_id = ?`, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list venue duplicates: %w", err)
		}
		defer rows.Close()
		venues, err := scanVenues(rows)
		if err != nil {
			return nil, err
		}
		return venueRecords(venues), nil
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

func (s *DedupeStore) SetDuplicateOf(kind string, id int64, primaryID int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(fmt.Sprintf(`UPDATE %s SET duplicate_of_id = ? WHERE id = ?`, table), primaryID, id)
	if err != nil {
		return fmt.Errorf("failed to set duplicate_of: %w", err)
	}
	return nil
}

// RepointAssociations moves references from the duplicates to the primary.
// Events pointing at a squashed venue move to the surviving one. Nothing
// references events by foreign key except tags, which are deliberately left
// alone during squashing.
func (s *DedupeStore) RepointAssociations(kind string, duplicateIDs []int64, primaryID int64) error {
	if kind != KindVenue || len(duplicateIDs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(duplicateIDs)), ", ")
	args := make([]any, 0, len(duplicateIDs)+1)
	args = append(args, primaryID)
	for _, id := range duplicateIDs {
		args = append(args, id)
	}

	_, err := s.db.Exec(`UPDATE events SET venue_id = ? WHERE venue_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to repoint events to venue %d: %w", primaryID, err)
	}
	return nil
}

func tableFor(kind string) (string, error) {
	switch kind {
	case KindEvent:
		return "events", nil
	case KindVenue:
		return "venues", nil
	}
	return "", fmt.Errorf("unknown record kind %q", kind)
}

func eventRecords(events []Event) []dedupe.Record {
	records := make([]dedupe.Record, len(events))
	for i := range events {
		records[i] = &events[i]
	}
	return records
}

func venueRecords(venues []Venue) []dedupe.Record {
	records := make([]dedupe.Record, len(venues))
	for i := range venues {
		records[i] = &venues[i]
	}
	return records
}
