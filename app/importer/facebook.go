package importer

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/goccy/go-json"
)

// FacebookDecoder imports single events through the Graph API.
type FacebookDecoder struct {
	fetcher     *Fetcher
	accessToken string
	apiBase     string
}

func NewFacebookDecoder(fetcher *Fetcher, accessToken string) *FacebookDecoder {
	return &FacebookDecoder{
		fetcher:     fetcher,
		accessToken: accessToken,
		apiBase:     "https://graph.facebook.com",
	}
}

var facebookURLPattern = regexp.MustCompile(`(?i)^https?://(?:www\.)?facebook\.com/events/(\d+)`)

func (d *FacebookDecoder) Label() string { return "facebook" }

func (d *FacebookDecoder) URLPattern() *regexp.Regexp { return facebookURLPattern }

type facebookEvent struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Place       struct {
		Name     string `json:"name"`
		Location struct {
			Street    string  `json:"street"`
			City      string  `json:"city"`
			State     string  `json:"state"`
			Zip       string  `json:"zip"`
			Country   string  `json:"country"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
	} `json:"place"`
}

func (d *FacebookDecoder) Decode(ctx context.Context, in Input) ([]AbstractEvent, error) {
	m := facebookURLPattern.FindStringSubmatch(in.URL)
	if m == nil {
		return nil, nil
	}
	eventID := m[1]

	if d.accessToken == "" {
		return nil, fmt.Errorf("facebook access token is not configured")
	}

	apiURL := fmt.Sprintf("%s/%s?fields=name,description,start_time,end_time,place&access_token=%s",
		d.apiBase, url.PathEscape(eventID), url.QueryEscape(d.accessToken))

	body, err := d.fetcher.Read(ctx, apiURL)
	if err != nil {
		return nil, err
	}

	var resp facebookEvent
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Facebook response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: facebook event %s: %s", ErrNotFound, eventID, resp.Error.Message)
	}

	start, err := parseFacebookTime(resp.StartTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Facebook start time %q: %w", resp.StartTime, err)
	}

	event := AbstractEvent{
		Title:       resp.Name,
		Description: resp.Description,
		URL:         fmt.Sprintf("https://www.facebook.com/events/%s/", eventID),
		Start:       start,
		Tags:        []string{fmt.Sprintf("facebook:event=%s", eventID)},
	}

	if resp.EndTime != "" {
		end, err := parseFacebookTime(resp.EndTime)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Facebook end time %q: %w", resp.EndTime, err)
		}
		event.End = &end
	}

	if resp.Place.Name != "" {
		location := &AbstractLocation{
			Title:         resp.Place.Name,
			StreetAddress: resp.Place.Location.Street,
			Locality:      resp.Place.Location.City,
			Region:        resp.Place.Location.State,
			PostalCode:    resp.Place.Location.Zip,
			Country:       resp.Place.Location.Country,
		}
		if resp.Place.Location.Latitude != 0 || resp.Place.Location.Longitude != 0 {
			lat, lng := resp.Place.Location.Latitude, resp.Place.Location.Longitude
			location.Latitude = &lat
			location.Longitude = &lng
		}
		event.Location = location
	}

	return []AbstractEvent{event}, nil
}

// The Graph API formats offsets without a colon, which RFC 3339 parsing
// rejects.
func parseFacebookTime(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02T15:04:05-0700", value)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse(time.RFC3339, value)
	if err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, err
}
