package importer

import (
	"context"
	"testing"
	"time"
)

func decodeHTML(t *testing.T, content string) []AbstractEvent {
	t.Helper()
	d := NewHCalendarDecoder(nil)
	events, err := d.Decode(context.Background(), Input{Content: []byte(content)})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return events
}

func TestHCalendarDecode(t *testing.T) {
	page := `<html><body>
<div class="vevent">
  <a class="url summary" href="http://example.com/party">Summer Party</a>
  <abbr class="dtstart" title="2031-07-14T18:00:00-07:00">July 14th, 6pm</abbr>
  <abbr class="dtend" title="2031-07-14T21:00:00-07:00">9pm</abbr>
  <span class="location">Laurelhurst Park</span>
  <div class="description">Bring a blanket.</div>
</div>
</body></html>`

	events := decodeHTML(t, page)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Title != "Summer Party" {
		t.Errorf("Unexpected title: %q", ev.Title)
	}
	if ev.URL != "http://example.com/party" {
		t.Errorf("Unexpected URL: %q", ev.URL)
	}
	if ev.Description != "Bring a blanket." {
		t.Errorf("Unexpected description: %q", ev.Description)
	}
	if ev.RawLocation != "Laurelhurst Park" {
		t.Errorf("Unexpected location: %q", ev.RawLocation)
	}

	want := time.Date(2031, 7, 14, 18, 0, 0, 0, time.FixedZone("", -7*3600))
	if !ev.Start.Equal(want) {
		t.Errorf("Expected start %v, got %v", want, ev.Start)
	}
	if ev.End == nil || !ev.End.Equal(want.Add(3*time.Hour)) {
		t.Errorf("Unexpected end: %v", ev.End)
	}
}

func TestHCalendarMultipleEvents(t *testing.T) {
	page := `<html><body>
<div class="vevent">
  <span class="summary">First</span>
  <abbr class="dtstart" title="2031-01-01T10:00:00Z">Jan 1</abbr>
</div>
<div class="vevent">
  <span class="summary">Second</span>
  <abbr class="dtstart" title="2031-01-02T10:00:00Z">Jan 2</abbr>
</div>
</body></html>`

	events := decodeHTML(t, page)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Title != "First" || events[1].Title != "Second" {
		t.Errorf("Unexpected titles: %q, %q", events[0].Title, events[1].Title)
	}
}

func TestHCalendarPrefersAbbrTitleOverText(t *testing.T) {
	page := `<div class="vevent">
  <span class="summary">Meeting</span>
  <abbr class="dtstart" title="2031-03-05T19:30:00Z">sometime in March</abbr>
</div>`

	events := decodeHTML(t, page)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	want := time.Date(2031, 3, 5, 19, 30, 0, 0, time.UTC)
	if !events[0].Start.Equal(want) {
		t.Errorf("Expected start from title attribute %v, got %v", want, events[0].Start)
	}
}

func TestHCalendarFallsBackToElementText(t *testing.T) {
	page := `<div class="vevent">
  <span class="summary">Text date</span>
  <span class="dtstart">2031-03-05 19:30</span>
</div>`

	events := decodeHTML(t, page)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	want := time.Date(2031, 3, 5, 19, 30, 0, 0, time.Local)
	if !events[0].Start.Equal(want) {
		t.Errorf("Expected start %v, got %v", want, events[0].Start)
	}
}

func TestHCalendarEntityEscapedDate(t *testing.T) {
	page := `<div class="vevent">
  <span class="summary">Escaped</span>
  <span class="dtstart">2031-03-05&nbsp;19:30</span>
</div>`

	events := decodeHTML(t, page)
	if len(events) != 1 {
		t.Fatalf("Expected entity-escaped date to parse, got %d events", len(events))
	}
}

func TestHCalendarSkipsNodeWithoutDate(t *testing.T) {
	page := `<div class="vevent">
  <span class="summary">No date here</span>
</div>
<div class="vevent">
  <span class="summary">Dated</span>
  <abbr class="dtstart" title="2031-03-05T19:30:00Z">March 5</abbr>
</div>`

	events := decodeHTML(t, page)
	if len(events) != 1 {
		t.Fatalf("Expected undated node skipped, got %d events", len(events))
	}
	if events[0].Title != "Dated" {
		t.Errorf("Wrong event survived: %q", events[0].Title)
	}
}

func TestHCalendarNoEvents(t *testing.T) {
	events := decodeHTML(t, "<html><body><p>Nothing here</p></body></html>")
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}
