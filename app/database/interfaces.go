package database

import (
	"time"
)

type SourceRepository interface {
	GetSource(id int64) (*Source, error)
	GetSourceByURL(url string) (*Source, error)
	ListSources() ([]Source, error)
	GetDueSources(now time.Time) ([]Source, error)
	GetSourceCount() (int, error)

	UpsertSource(s *Source) error
	UpdateImportTimes(id int64, lastImportedAt time.Time, nextImportAt time.Time) error
	DeleteSource(id int64) error
}

type EventRepository interface {
	GetEvent(id int64) (*Event, error)
	ListEvents(after time.Time, limit int) ([]Event, error)
	ListEventsBySource(sourceID int64) ([]Event, error)
	GetEventCount() (int, error)

	CreateEvent(e *Event) error
	UpdateEvent(e *Event) error
	DeleteEvent(id int64) error

	GetEventsForEnrichment(sourceID int64, limit int) ([]Event, error)
	UpdateEventDescription(id int64, description string) error
}

type VenueRepository interface {
	GetVenue(id int64) (*Venue, error)
	ListVenues(limit int) ([]Venue, error)
	GetVenueCount() (int, error)

	CreateVenue(v *Venue) error
	UpdateVenue(v *Venue) error
	DeleteVenue(id int64) error
}

type TagRepository interface {
	GetTags(taggableType string, taggableID int64) ([]string, error)
	AddTags(taggableType string, taggableID int64, names []string) error

	// EarliestTagged returns the creation time of the oldest record carrying
	// the tag, across events and venues. Used to date archive snapshots for
	// machine tags on defunct namespaces.
	EarliestTagged(name string) (*time.Time, error)
}
