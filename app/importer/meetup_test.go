package importer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestMeetupDecoder(apiBase, apiKey string) *MeetupDecoder {
	fetcher := NewFetcher(5*time.Second, "test-agent")
	d := NewMeetupDecoder(fetcher, NewICalendarDecoder(fetcher, true), apiKey)
	if apiBase != "" {
		d.apiBase = apiBase
	}
	return d
}

func TestMeetupDecodeIgnoresOtherURLs(t *testing.T) {
	d := newTestMeetupDecoder("", "key")

	events, err := d.Decode(context.Background(), Input{URL: "https://example.com/events/123"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if events != nil {
		t.Errorf("Expected nil events for a non-Meetup URL, got %v", events)
	}
}

func TestMeetupDecode(t *testing.T) {
	var requestPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"name": "Monthly Hack Night",
			"description": "Bring a project.",
			"event_url": "https://www.meetup.com/pdx-hackers/events/987654/",
			"time": 1924974000000,
			"duration": 7200000,
			"group": {"urlname": "pdx-hackers"},
			"venue": {
				"name": "Collective Agency",
				"address_1": "322 NW 6th Ave",
				"city": "Portland",
				"state": "OR",
				"zip": "97209",
				"country": "us",
				"lat": 45.524,
				"lon": -122.676
			}
		}`))
	}))
	defer srv.Close()

	d := newTestMeetupDecoder(srv.URL, "secret-key")

	events, err := d.Decode(context.Background(), Input{URL: "https://www.meetup.com/pdx-hackers/events/987654/"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	if requestPath != "/2/event/987654" {
		t.Errorf("Expected API path /2/event/987654, got %q", requestPath)
	}

	event := events[0]
	if event.Title != "Monthly Hack Night" {
		t.Errorf("Expected title 'Monthly Hack Night', got %q", event.Title)
	}
	if event.URL != "https://www.meetup.com/pdx-hackers/events/987654/" {
		t.Errorf("Unexpected event URL %q", event.URL)
	}

	wantStart := time.UnixMilli(1924974000000).UTC()
	if !event.Start.Equal(wantStart) {
		t.Errorf("Expected start %v, got %v", wantStart, event.Start)
	}
	if event.End == nil {
		t.Fatal("Expected an end time")
	}
	if want := wantStart.Add(2 * time.Hour); !event.End.Equal(want) {
		t.Errorf("Expected end %v, got %v", want, *event.End)
	}

	if event.Location == nil {
		t.Fatal("Expected a venue")
	}
	if event.Location.Title != "Collective Agency" {
		t.Errorf("Expected venue title 'Collective Agency', got %q", event.Location.Title)
	}
	if event.Location.StreetAddress != "322 NW 6th Ave" {
		t.Errorf("Expected street address '322 NW 6th Ave', got %q", event.Location.StreetAddress)
	}
	if event.Location.Locality != "Portland" || event.Location.Region != "OR" {
		t.Errorf("Unexpected locality/region %q/%q", event.Location.Locality, event.Location.Region)
	}
	if event.Location.Latitude == nil || *event.Location.Latitude != 45.524 {
		t.Errorf("Expected latitude 45.524, got %v", event.Location.Latitude)
	}

	wantTags := []string{"meetup:event=987654", "meetup:group=pdx-hackers"}
	if len(event.Tags) != len(wantTags) {
		t.Fatalf("Expected %d tags, got %d: %v", len(wantTags), len(event.Tags), event.Tags)
	}
	for i, tag := range wantTags {
		if event.Tags[i] != tag {
			t.Errorf("Expected tag %q at %d, got %q", tag, i, event.Tags[i])
		}
	}
}

func TestMeetupDecodeDefaultDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "Short Notice", "time": 1924974000000, "group": {"urlname": "g"}}`))
	}))
	defer srv.Close()

	d := newTestMeetupDecoder(srv.URL, "secret-key")

	events, err := d.Decode(context.Background(), Input{URL: "https://meetup.com/g/events/1/"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.End == nil {
		t.Fatal("Expected an end time")
	}
	if want := event.Start.Add(3 * time.Hour); !event.End.Equal(want) {
		t.Errorf("Expected default 3h duration ending %v, got %v", want, *event.End)
	}
	if event.Location != nil {
		t.Errorf("Expected no venue, got %v", event.Location)
	}
}

func TestMeetupDecodeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"problem": "Event 42 not found"}`))
	}))
	defer srv.Close()

	d := newTestMeetupDecoder(srv.URL, "secret-key")

	_, err := d.Decode(context.Background(), Input{URL: "https://meetup.com/g/events/42/"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestICalExportURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.meetup.com/g/events/123/", "https://www.meetup.com/g/events/123/ical/x.ics"},
		{"https://www.meetup.com/g/events/123", "https://www.meetup.com/g/events/123/ical/x.ics"},
	}

	for _, tt := range tests {
		if got := icalExportURL(tt.url); got != tt.want {
			t.Errorf("icalExportURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("Expected 'b', got %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}
