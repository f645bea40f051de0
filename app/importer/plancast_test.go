package importer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestPlancastDecoder(apiBase string) *PlancastDecoder {
	d := NewPlancastDecoder(NewFetcher(5*time.Second, "test-agent"))
	if apiBase != "" {
		d.apiBase = apiBase
	}
	return d
}

func TestPlancastDecodeIgnoresOtherURLs(t *testing.T) {
	d := newTestPlancastDecoder("")

	events, err := d.Decode(context.Background(), Input{URL: "https://plancast.com/about"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if events != nil {
		t.Errorf("Expected nil events for a non-plan URL, got %v", events)
	}
}

func TestPlancastDecode(t *testing.T) {
	var requestQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestQuery = r.URL.RawQuery
		w.Write([]byte(`{
			"what": "Ignite Portland",
			"description": "Five minutes, twenty slides.",
			"start": "1930408800",
			"stop": "1930419600",
			"plan_url": "http://plancast.com/p/abc1",
			"place": {
				"name": "Bagdad Theater",
				"address": "3702 SE Hawthorne Blvd, Portland, OR",
				"latitude": "45.512",
				"longitude": "-122.627"
			}
		}`))
	}))
	defer srv.Close()

	d := newTestPlancastDecoder(srv.URL)

	events, err := d.Decode(context.Background(), Input{URL: "http://plancast.com/p/abc1"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	if requestQuery != "plan_id=abc1&extensions=place" {
		t.Errorf("Unexpected API query %q", requestQuery)
	}

	event := events[0]
	if event.Title != "Ignite Portland" {
		t.Errorf("Expected title 'Ignite Portland', got %q", event.Title)
	}
	if event.URL != "http://plancast.com/p/abc1" {
		t.Errorf("Unexpected event URL %q", event.URL)
	}

	wantStart := time.Unix(1930408800, 0).UTC()
	if !event.Start.Equal(wantStart) {
		t.Errorf("Expected start %v, got %v", wantStart, event.Start)
	}
	if event.End == nil {
		t.Fatal("Expected an end time")
	}
	if want := time.Unix(1930419600, 0).UTC(); !event.End.Equal(want) {
		t.Errorf("Expected end %v, got %v", want, *event.End)
	}

	if event.Location == nil {
		t.Fatal("Expected a venue")
	}
	if event.Location.Title != "Bagdad Theater" {
		t.Errorf("Expected venue title 'Bagdad Theater', got %q", event.Location.Title)
	}
	if event.Location.Address != "3702 SE Hawthorne Blvd, Portland, OR" {
		t.Errorf("Unexpected venue address %q", event.Location.Address)
	}
	if event.Location.Latitude == nil || *event.Location.Latitude != 45.512 {
		t.Errorf("Expected latitude 45.512, got %v", event.Location.Latitude)
	}

	if len(event.Tags) != 1 || event.Tags[0] != "plancast:plan=abc1" {
		t.Errorf("Expected tag plancast:plan=abc1, got %v", event.Tags)
	}
}

func TestPlancastDecodeIgnoresStopBeforeStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"what": "Plan", "start": "1930408800", "stop": "1930000000"}`))
	}))
	defer srv.Close()

	d := newTestPlancastDecoder(srv.URL)

	events, err := d.Decode(context.Background(), Input{URL: "http://plancast.com/p/xyz"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].End != nil {
		t.Errorf("Expected no end time when stop precedes start, got %v", *events[0].End)
	}
}

func TestPlancastDecodeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "plan not found", "code": 404}}`))
	}))
	defer srv.Close()

	d := newTestPlancastDecoder(srv.URL)

	_, err := d.Decode(context.Background(), Input{URL: "http://plancast.com/p/gone"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestParseEpochSeconds(t *testing.T) {
	got, err := parseEpochSeconds("1930408800")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if want := time.Unix(1930408800, 0).UTC(); !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	if _, err := parseEpochSeconds("soon"); err == nil {
		t.Error("Expected an error for a non-numeric value")
	}
}
