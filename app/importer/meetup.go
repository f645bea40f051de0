package importer

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// MeetupDecoder imports single events through the Meetup API. Without a
// configured API key it falls back to the iCalendar decoder against the
// event's .ics export URL instead.
type MeetupDecoder struct {
	fetcher *Fetcher
	ical    *ICalendarDecoder
	apiKey  string
	apiBase string
}

func NewMeetupDecoder(fetcher *Fetcher, ical *ICalendarDecoder, apiKey string) *MeetupDecoder {
	return &MeetupDecoder{
		fetcher: fetcher,
		ical:    ical,
		apiKey:  apiKey,
		apiBase: "https://api.meetup.com",
	}
}

var meetupURLPattern = regexp.MustCompile(`(?i)^https?://(?:www\.)?meetup\.com/([^/]+)/events/([^/?#]+)`)

func (d *MeetupDecoder) Label() string { return "meetup" }

func (d *MeetupDecoder) URLPattern() *regexp.Regexp { return meetupURLPattern }

type meetupEvent struct {
	Problem     string `json:"problem"`
	Name        string `json:"name"`
	Description string `json:"description"`
	EventURL    string `json:"event_url"`
	Time        int64  `json:"time"`     // ms since epoch
	Duration    int64  `json:"duration"` // ms; API omits it for the default
	Group       struct {
		URLName string `json:"urlname"`
	} `json:"group"`
	Venue struct {
		Name     string  `json:"name"`
		Address1 string  `json:"address_1"`
		City     string  `json:"city"`
		State    string  `json:"state"`
		Zip      string  `json:"zip"`
		Country  string  `json:"country"`
		Lat      float64 `json:"lat"`
		Lon      float64 `json:"lon"`
	} `json:"venue"`
}

// Events without an explicit duration run three hours, per the API docs.
const meetupDefaultDuration = 3 * time.Hour

func (d *MeetupDecoder) Decode(ctx context.Context, in Input) ([]AbstractEvent, error) {
	m := meetupURLPattern.FindStringSubmatch(in.URL)
	if m == nil {
		return nil, nil
	}
	group, eventID := m[1], m[2]

	if d.apiKey == "" {
		return d.ical.Decode(ctx, Input{URL: icalExportURL(in.URL)})
	}

	apiURL := fmt.Sprintf("%s/2/event/%s?key=%s&sign=true&fields=venue",
		d.apiBase, url.PathEscape(eventID), url.QueryEscape(d.apiKey))

	body, err := d.fetcher.Read(ctx, apiURL)
	if err != nil {
		return nil, err
	}

	var resp meetupEvent
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Meetup response: %w", err)
	}
	if resp.Problem != "" {
		return nil, fmt.Errorf("%w: meetup event %s: %s", ErrNotFound, eventID, resp.Problem)
	}

	event := AbstractEvent{
		Title:       resp.Name,
		Description: resp.Description,
		URL:         firstNonEmpty(resp.EventURL, in.URL),
		Start:       time.UnixMilli(resp.Time).UTC(),
		Tags: []string{
			fmt.Sprintf("meetup:event=%s", eventID),
			fmt.Sprintf("meetup:group=%s", firstNonEmpty(resp.Group.URLName, group)),
		},
	}

	duration := meetupDefaultDuration
	if resp.Duration > 0 {
		duration = time.Duration(resp.Duration) * time.Millisecond
	}
	end := event.Start.Add(duration)
	event.End = &end

	if resp.Venue.Name != "" {
		location := &AbstractLocation{
			Title:         resp.Venue.Name,
			StreetAddress: resp.Venue.Address1,
			Locality:      resp.Venue.City,
			Region:        resp.Venue.State,
			PostalCode:    resp.Venue.Zip,
			Country:       resp.Venue.Country,
		}
		if resp.Venue.Lat != 0 || resp.Venue.Lon != 0 {
			lat, lon := resp.Venue.Lat, resp.Venue.Lon
			location.Latitude = &lat
			location.Longitude = &lon
		}
		event.Location = location
	}

	return []AbstractEvent{event}, nil
}

// icalExportURL derives the .ics export URL Meetup serves alongside every
// event page.
func icalExportURL(eventURL string) string {
	trimmed := strings.TrimRight(eventURL, "/")
	return trimmed + "/ical/x.ics"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
