package importer

import (
	"context"
	"testing"
	"time"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Upcoming Shows</title>
<link>https://example.com/shows</link>
<item>
<title>Album Release Party</title>
<link>https://example.com/shows/release</link>
<description>Doors at 8.</description>
<pubDate>Fri, 14 Mar 2031 20:00:00 +0000</pubDate>
<category>music</category>
<category>allages</category>
</item>
<item>
<title>Undated Announcement</title>
<link>https://example.com/shows/undated</link>
<description>No date here.</description>
</item>
<item>
<title>Last Year's Show</title>
<link>https://example.com/shows/old</link>
<pubDate>Sat, 10 Jan 2009 20:00:00 +0000</pubDate>
</item>
</channel>
</rss>`

func decodeRSS(t *testing.T, content string, skipOld bool, now time.Time) []AbstractEvent {
	t.Helper()

	d := NewRSSDecoder(NewFetcher(5*time.Second, "test-agent"), skipOld)
	if !now.IsZero() {
		d.now = func() time.Time { return now }
	}

	events, err := d.Decode(context.Background(), Input{Content: []byte(content)})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return events
}

func TestRSSDecode(t *testing.T) {
	events := decodeRSS(t, rssFixture, false, time.Time{})
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	event := events[0]
	if event.Title != "Album Release Party" {
		t.Errorf("Expected title 'Album Release Party', got %q", event.Title)
	}
	if event.URL != "https://example.com/shows/release" {
		t.Errorf("Unexpected event URL %q", event.URL)
	}
	if event.Description != "Doors at 8." {
		t.Errorf("Unexpected description %q", event.Description)
	}

	wantStart := time.Date(2031, 3, 14, 20, 0, 0, 0, time.UTC)
	if !event.Start.Equal(wantStart) {
		t.Errorf("Expected start %v, got %v", wantStart, event.Start)
	}

	if len(event.Tags) != 2 || event.Tags[0] != "music" || event.Tags[1] != "allages" {
		t.Errorf("Expected categories as tags, got %v", event.Tags)
	}
}

func TestRSSDecodeSkipsUndatedEntries(t *testing.T) {
	events := decodeRSS(t, rssFixture, false, time.Time{})
	for _, event := range events {
		if event.Title == "Undated Announcement" {
			t.Error("Expected undated entry to be skipped")
		}
	}
}

func TestRSSDecodeSkipsOldEntries(t *testing.T) {
	now := time.Date(2031, 1, 15, 12, 0, 0, 0, time.UTC)

	events := decodeRSS(t, rssFixture, true, now)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event with old entries filtered, got %d", len(events))
	}
	if events[0].Title != "Album Release Party" {
		t.Errorf("Expected only the future entry, got %q", events[0].Title)
	}
}

func TestRSSDecodeNotAFeed(t *testing.T) {
	events := decodeRSS(t, "<html><body>Not a feed</body></html>", false, time.Time{})
	if events != nil {
		t.Errorf("Expected nil events for non-feed content, got %v", events)
	}
}
