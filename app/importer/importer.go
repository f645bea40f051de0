package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eventcomb/eventcomb/app/database"
	"github.com/eventcomb/eventcomb/app/dedupe"
	"github.com/eventcomb/eventcomb/app/machinetag"
)

// Geocoder fills in coordinates for a newly created venue. The default is a
// no-op; deployments plug in a real implementation.
type Geocoder interface {
	Geocode(v *database.Venue) error
}

type NoopGeocoder struct{}

func (NoopGeocoder) Geocode(*database.Venue) error { return nil }

// Result summarizes one import run. Zero decoded events is a distinct,
// non-error outcome.
type Result struct {
	DecoderLabel  string
	Decoded       int
	Created       int
	Duplicates    int
	VenuesCreated int
	Events        []database.Event
}

// Importer runs the fetch → dispatch → duplicate-resolution → persistence
// cycle for a source.
type Importer struct {
	registry *Registry
	checker  *dedupe.Checker
	events   database.EventRepository
	venues   database.VenueRepository
	tags     database.TagRepository
	geocoder Geocoder
}

func NewImporter(registry *Registry, checker *dedupe.Checker,
	events database.EventRepository, venues database.VenueRepository,
	tags database.TagRepository, geocoder Geocoder) *Importer {
	if geocoder == nil {
		geocoder = NoopGeocoder{}
	}
	return &Importer{
		registry: registry,
		checker:  checker,
		events:   events,
		venues:   venues,
		tags:     tags,
		geocoder: geocoder,
	}
}

func (i *Importer) Registry() *Registry { return i.registry }

// Import decodes the source's feed and persists the resulting events and
// venues, collapsing anything that duplicates an already persisted record.
func (i *Importer) Import(ctx context.Context, source *database.Source) (*Result, error) {
	in := Input{URL: NormalizeURL(source.URL)}

	var decoded []AbstractEvent
	var label string
	var err error

	if source.FormatType != "" {
		decoder := i.registry.Get(source.FormatType)
		if decoder == nil {
			return nil, fmt.Errorf("source %d declares unknown format %q", source.ID, source.FormatType)
		}
		label = decoder.Label()
		decoded, err = decoder.Decode(ctx, in)
	} else {
		decoded, label, err = i.registry.Dispatch(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{DecoderLabel: label, Decoded: len(decoded)}
	if len(decoded) == 0 {
		return result, nil
	}

	// Venues seen during this import, keyed by their significant content, so
	// one feed describing the same location repeatedly creates a single row.
	venueCache := map[string]int64{}

	for _, abstract := range decoded {
		event, err := i.persistEvent(abstract, source, venueCache, result)
		if err != nil {
			return nil, err
		}
		result.Events = append(result.Events, *event)
	}

	return result, nil
}

func (i *Importer) persistEvent(abstract AbstractEvent, source *database.Source,
	venueCache map[string]int64, result *Result) (*database.Event, error) {

	eventTags, venueTags := splitTags(abstract.Tags)

	venueID, err := i.resolveVenue(abstract, source, venueTags, venueCache, result)
	if err != nil {
		return nil, err
	}

	event := &database.Event{
		Title:       strings.TrimSpace(abstract.Title),
		Description: strings.TrimSpace(abstract.Description),
		URL:         abstract.URL,
		VenueID:     venueID,
		SourceID:    source.ID,
	}
	event.SetStart(abstract.Start)
	if abstract.End != nil {
		event.SetEnd(*abstract.End)
	}
	if venueID != 0 && abstract.RawLocation != "" {
		event.VenueDetails = abstract.RawLocation
	}

	// The venue must be resolved before this comparison; its attributes
	// include venue_id.
	duplicates, err := i.checker.FindExactDuplicates(event)
	if err != nil {
		return nil, err
	}
	if len(duplicates) > 0 {
		primary, err := i.checker.Originator(duplicates[0])
		if err != nil {
			return nil, err
		}
		result.Duplicates++
		slog.Debug("Event already exists, folding into primary",
			"title", event.Title, "primary", primary.RecordID())
		existing, err := i.events.GetEvent(primary.RecordID())
		if err != nil {
			return nil, err
		}
		return existing, nil
	}

	if err := i.events.CreateEvent(event); err != nil {
		return nil, fmt.Errorf("failed to persist event %q: %w", event.Title, err)
	}
	if len(eventTags) > 0 {
		if err := i.tags.AddTags(database.KindEvent, event.ID, eventTags); err != nil {
			return nil, err
		}
		event.Tags = eventTags
	}
	result.Created++

	return event, nil
}

// resolveVenue maps an abstract location (or raw location string) onto a
// persisted venue, reusing a venue already seen in this import or an
// existing duplicate in the store.
func (i *Importer) resolveVenue(abstract AbstractEvent, source *database.Source,
	venueTags []string, venueCache map[string]int64, result *Result) (int64, error) {

	venue := buildVenue(abstract, source)
	if venue == nil {
		return 0, nil
	}

	key := venueKey(venue)
	if id, ok := venueCache[key]; ok {
		return id, nil
	}

	duplicates, err := i.checker.FindExactDuplicates(venue)
	if err != nil {
		return 0, err
	}
	if len(duplicates) > 0 {
		primary, err := i.checker.Originator(duplicates[0])
		if err != nil {
			return 0, err
		}
		venueCache[key] = primary.RecordID()
		return primary.RecordID(), nil
	}

	if err := i.venues.CreateVenue(venue); err != nil {
		return 0, fmt.Errorf("failed to persist venue %q: %w", venue.Title, err)
	}
	if err := i.geocoder.Geocode(venue); err != nil {
		slog.Warn("Geocoding failed", "venue", venue.Title, "error", err)
	}
	if len(venueTags) > 0 {
		if err := i.tags.AddTags(database.KindVenue, venue.ID, venueTags); err != nil {
			return 0, err
		}
	}

	result.VenuesCreated++
	venueCache[key] = venue.ID
	return venue.ID, nil
}

func buildVenue(abstract AbstractEvent, source *database.Source) *database.Venue {
	if abstract.Location != nil {
		loc := abstract.Location
		return &database.Venue{
			Title:         strings.TrimSpace(loc.Title),
			Description:   loc.Description,
			Address:       loc.Address,
			StreetAddress: loc.StreetAddress,
			Locality:      loc.Locality,
			Region:        loc.Region,
			PostalCode:    loc.PostalCode,
			Country:       loc.Country,
			Latitude:      loc.Latitude,
			Longitude:     loc.Longitude,
			Email:         loc.Email,
			Telephone:     loc.Telephone,
			URL:           loc.URL,
			SourceID:      source.ID,
		}
	}

	// No structured venue: the raw location string becomes the title only.
	if raw := strings.TrimSpace(abstract.RawLocation); raw != "" {
		return &database.Venue{Title: raw, SourceID: source.ID}
	}

	return nil
}

func venueKey(v *database.Venue) string {
	return strings.Join([]string{v.Title, v.StreetAddress, v.Locality, v.Region,
		v.PostalCode, v.Country, v.Address}, "\x00")
}

// splitTags routes machine tags with a venue predicate to the venue; all
// other tags stay on the event.
func splitTags(tags []string) (eventTags, venueTags []string) {
	for _, tag := range tags {
		if parsed, ok := machinetag.Parse(tag); ok && parsed.IsVenue() {
			venueTags = append(venueTags, tag)
			continue
		}
		eventTags = append(eventTags, tag)
	}
	return eventTags, venueTags
}
