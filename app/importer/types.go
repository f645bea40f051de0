package importer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotFound means a decoder that is authoritative about a resource's
	// existence confirmed its absence. Dispatch stops instead of letting a
	// generic decoder fabricate an event from an error page.
	ErrNotFound = errors.New("remote resource not found")

	// ErrAuthRequired is raised by the fetch primitive on HTTP 401.
	ErrAuthRequired = errors.New("authentication required")
)

// Input identifies what a decoder should work on. Content is optional
// pre-fetched bytes; decoders fetch the URL themselves when it is nil.
type Input struct {
	URL     string
	Content []byte
}

// Decoder turns raw bytes or a recognized URL into normalized events.
//
// A decoder signals "not for me" by returning no events and no error, and
// confirmed remote absence with ErrNotFound. URL-pattern decoders claim
// matching URLs before any generic content decoder is tried.
type Decoder interface {
	Label() string
	URLPattern() *regexp.Regexp // nil for pure content-format decoders
	Decode(ctx context.Context, in Input) ([]AbstractEvent, error)
}

// AbstractEvent is the transient normalized form decoders produce before
// entity construction and duplicate resolution.
type AbstractEvent struct {
	Title       string
	Description string
	URL         string
	Start       time.Time
	End         *time.Time
	Location    *AbstractLocation
	RawLocation string // location string when no structured venue was found
	Tags        []string
}

// equalityKey serializes every attribute, so two abstract events compare
// equal exactly when a full attribute comparison would say so.
func (e AbstractEvent) equalityKey() string {
	var b strings.Builder
	end := ""
	if e.End != nil {
		end = e.End.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(&b, "%s|%s|%s|%s|%s|%s|%s",
		e.Title, e.Description, e.URL, e.Start.UTC().Format(time.RFC3339), end,
		e.RawLocation, strings.Join(e.Tags, ","))
	if e.Location != nil {
		fmt.Fprintf(&b, "|%s|%s|%s|%s|%s|%s|%s|%s",
			e.Location.Title, e.Location.Address, e.Location.StreetAddress,
			e.Location.Locality, e.Location.Region, e.Location.PostalCode,
			e.Location.Country, e.Location.URL)
	}
	return b.String()
}

// AbstractLocation is the transient normalized form of a venue.
type AbstractLocation struct {
	Title         string
	Description   string
	Address       string
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
	Tags          []string
}
