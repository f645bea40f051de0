package database

import (
	"database/sql"
	"fmt"
	"time"
)

type VenueRepositoryImpl struct {
	db *DB
}

var _ VenueRepository = (*VenueRepositoryImpl)(nil)

func NewVenueRepository(db *DB) *VenueRepositoryImpl {
	return &VenueRepositoryImpl{db: db}
}

const venueColumns = `id, title, description, address, street_address, locality,
	region, postal_code, country, latitude, longitude, email, telephone, url,
	closed, wifi, access_notes, COALESCE(source_id, 0),
	COALESCE(duplicate_of_id, 0), created_at, updated_at`

func (r *VenueRepositoryImpl) GetVenue(id int64) (*Venue, error) {
	rows, err := r.db.Query(`SELECT `+venueColumns+` FROM venues WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	defer rows.Close()

	venues, err := scanVenues(rows)
	if err != nil {
		return nil, err
	}
	if len(venues) == 0 {
		return nil, nil
	}
	return &venues[0], nil
}

func (r *VenueRepositoryImpl) ListVenues(limit int) ([]Venue, error) {
	rows, err := r.db.Query(`
		SELECT `+venueColumns+`
		FROM venues
		WHERE duplicate_of_id IS NULL
		ORDER BY title
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	defer rows.Close()
	return scanVenues(rows)
}

func (r *VenueRepositoryImpl) GetVenueCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM venues WHERE duplicate_of_id IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count venues: %w", err)
	}
	return count, nil
}

func (r *VenueRepositoryImpl) CreateVenue(v *Venue) error {
	now := time.Now().UTC()
	err := r.db.QueryRow(`
		INSERT INTO venues (title, description, address, street_address, locality,
			region, postal_code, country, latitude, longitude, email, telephone,
			url, closed, wifi, access_notes, source_id, duplicate_of_id,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, v.Title, v.Description, v.Address, v.StreetAddress, v.Locality, v.Region,
		v.PostalCode, v.Country, v.Latitude, v.Longitude, v.Email, v.Telephone,
		v.URL, v.Closed, v.Wifi, v.AccessNotes, nullableID(v.SourceID),
		nullableID(v.DuplicateOfID), timeToDB(now), timeToDB(now)).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("failed to create venue: %w", err)
	}

	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

func (r *VenueRepositoryImpl) UpdateVenue(v *Venue) error {
	_, err := r.db.Exec(`
		UPDATE venues
		SET title = ?, description = ?, address = ?, street_address = ?,
			locality = ?, region = ?, postal_code = ?, country = ?, latitude = ?,
			longitude = ?, email = ?, telephone = ?, url = ?, closed = ?, wifi = ?,
			access_notes = ?, source_id = ?, duplicate_of_id = ?, updated_at = ?
		WHERE id = ?
	`, v.Title, v.Description, v.Address, v.StreetAddress, v.Locality, v.Region,
		v.PostalCode, v.Country, v.Latitude, v.Longitude, v.Email, v.Telephone,
		v.URL, v.Closed, v.Wifi, v.AccessNotes, nullableID(v.SourceID),
		nullableID(v.DuplicateOfID), timeToDB(time.Now()), v.ID)
	if err != nil {
		return fmt.Errorf("failed to update venue: %w", err)
	}
	return nil
}

func (r *VenueRepositoryImpl) DeleteVenue(id int64) error {
	_, err := r.db.Exec(`DELETE FROM venues WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete venue: %w", err)
	}
	return nil
}

func scanVenues(rows *sql.Rows) ([]Venue, error) {
	var venues []Venue
	for rows.Next() {
		var v Venue
		var lat, lng sql.NullFloat64
		err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.Address,
			&v.StreetAddress, &v.Locality, &v.Region, &v.PostalCode, &v.Country,
			&lat, &lng, &v.Email, &v.Telephone, &v.URL, &v.Closed, &v.Wifi,
			&v.AccessNotes, &v.SourceID, &v.DuplicateOfID,
			&scanTime{&v.CreatedAt}, &scanTime{&v.UpdatedAt})
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		if lat.Valid {
			v.Latitude = &lat.Float64
		}
		if lng.Valid {
			v.Longitude = &lng.Float64
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}
