package importer

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// PlancastDecoder imports plans through the Plancast API.
type PlancastDecoder struct {
	fetcher *Fetcher
	apiBase string
}

func NewPlancastDecoder(fetcher *Fetcher) *PlancastDecoder {
	return &PlancastDecoder{
		fetcher: fetcher,
		apiBase: "http://api.plancast.com",
	}
}

var plancastURLPattern = regexp.MustCompile(`(?i)^https?://(?:www\.)?plancast\.com/p/([^/?#]+)`)

func (d *PlancastDecoder) Label() string { return "plancast" }

func (d *PlancastDecoder) URLPattern() *regexp.Regexp { return plancastURLPattern }

type plancastPlan struct {
	Error       json.RawMessage `json:"error"`
	What        string          `json:"what"`
	Description string          `json:"description"`
	Start       string          `json:"start"` // epoch seconds
	Stop        string          `json:"stop"`
	PlanURL     string          `json:"plan_url"`
	Place       struct {
		Name      string `json:"name"`
		Address   string `json:"address"`
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"place"`
}

func (d *PlancastDecoder) Decode(ctx context.Context, in Input) ([]AbstractEvent, error) {
	m := plancastURLPattern.FindStringSubmatch(in.URL)
	if m == nil {
		return nil, nil
	}
	planID := m[1]

	apiURL := fmt.Sprintf("%s/02/plans/show.json?plan_id=%s&extensions=place",
		d.apiBase, url.QueryEscape(planID))

	body, err := d.fetcher.Read(ctx, apiURL)
	if err != nil {
		return nil, err
	}

	var resp plancastPlan
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Plancast response: %w", err)
	}
	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		return nil, fmt.Errorf("%w: plancast plan %s: %s", ErrNotFound, planID, resp.Error)
	}

	start, err := parseEpochSeconds(resp.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Plancast start %q: %w", resp.Start, err)
	}

	event := AbstractEvent{
		Title:       resp.What,
		Description: resp.Description,
		URL:         firstNonEmpty(resp.PlanURL, in.URL),
		Start:       start,
		Tags:        []string{fmt.Sprintf("plancast:plan=%s", planID)},
	}

	if resp.Stop != "" {
		end, err := parseEpochSeconds(resp.Stop)
		if err == nil && !end.Before(start) {
			event.End = &end
		}
	}

	if resp.Place.Name != "" {
		location := &AbstractLocation{
			Title:   resp.Place.Name,
			Address: resp.Place.Address,
		}
		if lat, err := strconv.ParseFloat(resp.Place.Latitude, 64); err == nil {
			if lng, err := strconv.ParseFloat(resp.Place.Longitude, 64); err == nil {
				location.Latitude = &lat
				location.Longitude = &lng
			}
		}
		event.Location = location
	}

	return []AbstractEvent{event}, nil
}

func parseEpochSeconds(value string) (time.Time, error) {
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(seconds, 0).UTC(), nil
}
