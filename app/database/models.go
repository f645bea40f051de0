package database

import (
	"fmt"
	"time"
)

// Kinds used by duplicate checking and the tags table.
const (
	KindEvent = "events"
	KindVenue = "venues"
)

// Source describes one external feed an operator registered for import.
// Decoders read it; they never mutate it.
type Source struct {
	ID                  int64
	Title               string
	URL                 string
	FormatType          string // registered decoder label, or "" for auto-detect
	Enabled             bool
	ReimportInterval    int // seconds
	ExtractDescriptions bool
	LastImportedAt      *time.Time
	NextImportAt        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Event struct {
	ID            int64
	Title         string
	Description   string
	URL           string
	StartTime     time.Time
	EndTime       *time.Time
	VenueID       int64
	VenueDetails  string
	SourceID      int64
	DuplicateOfID int64
	Tags          []string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// End time seen before any start time was known; converted to a real
	// end time once SetStart runs.
	stagedEnd *time.Time
}

// SetStart assigns the start time and resolves a staged end time into a
// concrete one, preserving the staged duration.
func (e *Event) SetStart(t time.Time) {
	e.StartTime = t
	if e.stagedEnd != nil {
		d := e.stagedEnd.Sub(t)
		if d >= 0 {
			end := t.Add(d)
			e.EndTime = &end
		}
		e.stagedEnd = nil
	}
}

// SetEnd assigns the end time. When no start time is known yet the value is
// staged rather than applied, so the end-not-before-start invariant can be
// checked once the start arrives.
func (e *Event) SetEnd(t time.Time) {
	if e.StartTime.IsZero() {
		e.stagedEnd = &t
		return
	}
	e.EndTime = &t
}

// SetDurationMinutes derives the end time from the start plus a duration.
func (e *Event) SetDurationMinutes(minutes int) {
	if e.StartTime.IsZero() || minutes <= 0 {
		return
	}
	end := e.StartTime.Add(time.Duration(minutes) * time.Minute)
	e.EndTime = &end
}

func (e *Event) DurationMinutes() int {
	if e.EndTime == nil {
		return 0
	}
	return int(e.EndTime.Sub(e.StartTime) / time.Minute)
}

func (e *Event) Validate() error {
	if e.StartTime.IsZero() {
		return fmt.Errorf("event start time is required")
	}
	if e.EndTime != nil && e.EndTime.Before(e.StartTime) {
		return fmt.Errorf("event end time %s is before start time %s", e.EndTime, e.StartTime)
	}
	return nil
}

func (e *Event) Kind() string       { return KindEvent }
func (e *Event) RecordID() int64    { return e.ID }
func (e *Event) DuplicateOf() int64 { return e.DuplicateOfID }

// SignificantAttributes lists the columns duplicate matching compares.
// Identifiers, timestamps, the duplicate_of pointer and the importing source
// are excluded. The venue association only participates once it is resolved;
// matching on an unresolved foreign key would produce false negatives.
func (e *Event) SignificantAttributes() map[string]any {
	attrs := map[string]any{
		"title":         e.Title,
		"description":   e.Description,
		"url":           e.URL,
		"start_time":    timeToDB(e.StartTime),
		"venue_details": e.VenueDetails,
	}
	if e.EndTime != nil {
		attrs["end_time"] = timeToDB(*e.EndTime)
	} else {
		attrs["end_time"] = nil
	}
	if e.VenueID != 0 {
		attrs["venue_id"] = e.VenueID
	}
	return attrs
}

type Venue struct {
	ID            int64
	Title         string
	Description   string
	Address       string // free-text fallback when no structured address exists
	StreetAddress string
	Locality      string
	Region        string
	PostalCode    string
	Country       string
	Latitude      *float64
	Longitude     *float64
	Email         string
	Telephone     string
	URL           string
	Closed        bool
	Wifi          bool
	AccessNotes   string
	SourceID      int64
	DuplicateOfID int64
	Tags          []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (v *Venue) Kind() string       { return KindVenue }
func (v *Venue) RecordID() int64    { return v.ID }
func (v *Venue) DuplicateOf() int64 { return v.DuplicateOfID }

// Coordinates are excluded: geocoding fills them in after creation, so two
// otherwise identical venues may differ only by a geocoder run.
func (v *Venue) SignificantAttributes() map[string]any {
	return map[string]any{
		"title":          v.Title,
		"description":    v.Description,
		"address":        v.Address,
		"street_address": v.StreetAddress,
		"locality":       v.Locality,
		"region":         v.Region,
		"postal_code":    v.PostalCode,
		"country":        v.Country,
		"email":          v.Email,
		"telephone":      v.Telephone,
		"url":            v.URL,
	}
}

// HasFullAddress reports whether any structured address component is set.
func (v *Venue) HasFullAddress() bool {
	return v.StreetAddress != "" || v.Locality != "" || v.Region != "" ||
		v.PostalCode != "" || v.Country != ""
}
