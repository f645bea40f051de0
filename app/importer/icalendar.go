package importer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ICalendarDecoder decodes VCALENDAR documents, including the non-standard
// VVENUE extension some publishers embed for venue data. It is a pure
// content-format decoder with no URL pattern.
type ICalendarDecoder struct {
	fetcher *Fetcher

	// SkipOld drops components that ended before yesterday. On by default;
	// callers importing historical archives turn it off.
	SkipOld bool

	now func() time.Time
}

func NewICalendarDecoder(fetcher *Fetcher, skipOld bool) *ICalendarDecoder {
	return &ICalendarDecoder{
		fetcher: fetcher,
		SkipOld: skipOld,
		now:     time.Now,
	}
}

func (d *ICalendarDecoder) Label() string { return "ical" }

func (d *ICalendarDecoder) URLPattern() *regexp.Regexp { return nil }

var (
	// "GMT" is not an IANA zone name; a ;TZID=GMT: timestamp is really a UTC
	// instant and is rewritten to the bare Z-suffixed form before parsing.
	gmtTzidPattern = regexp.MustCompile(`(?m);TZID=GMT:(.*)$`)

	// A single fetch may contain several concatenated calendar documents.
	calendarPattern = regexp.MustCompile(`(?s)BEGIN:VCALENDAR.*?END:VCALENDAR`)

	vvenuePattern = regexp.MustCompile(`(?s)BEGIN:VVENUE\r?\n(.*?)END:VVENUE`)
)

// Error signatures the library produces for content that cannot be read as a
// calendar: structural begin/end problems and lines that are not properties.
// Such content is simply not a calendar, which is "no events" rather than a
// failure. Anything else is unexpected and propagates.
var notCalendarSignatures = []string{
	"malformed calendar",
	"parsing calendar line",
	"parsing line",
	"unbalanced end",
}

func isNotCalendarError(err error) bool {
	msg := err.Error()
	for _, signature := range notCalendarSignatures {
		if strings.Contains(msg, signature) {
			return true
		}
	}
	return false
}

func (d *ICalendarDecoder) Decode(ctx context.Context, in Input) ([]AbstractEvent, error) {
	content := in.Content
	if content == nil {
		var err error
		content, err = d.fetcher.Read(ctx, in.URL)
		if err != nil {
			return nil, err
		}
	}

	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	text = gmtTzidPattern.ReplaceAllString(text, ":${1}Z")

	chunks := calendarPattern.FindAllString(text, -1)
	if len(chunks) == 0 {
		return nil, nil
	}

	var events []AbstractEvent
	seen := map[string]bool{}

	for _, chunk := range chunks {
		cal, err := ics.ParseCalendar(strings.NewReader(chunk))
		if err != nil {
			if isNotCalendarError(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to parse calendar: %w", err)
		}

		venues := scanVVenues(chunk)

		for _, component := range cal.Events() {
			event, ok, err := d.decodeComponent(component, venues)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			// A feed can legitimately repeat an identical event definition.
			key := event.equalityKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			events = append(events, event)
		}
	}

	return events, nil
}

func (d *ICalendarDecoder) decodeComponent(ve *ics.VEvent, venues map[string]*AbstractLocation) (AbstractEvent, bool, error) {
	var event AbstractEvent

	if p := ve.GetProperty(ics.ComponentPropertySummary); p != nil {
		event.Title = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ics.ComponentPropertyDescription); p != nil {
		event.Description = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ics.ComponentPropertyUrl); p != nil {
		event.URL = p.Value
	}

	start, end, err := d.componentTimes(ve)
	if err != nil {
		return event, false, err
	}
	if start.IsZero() {
		return event, false, nil
	}
	event.Start = start
	event.End = end

	if d.SkipOld {
		yesterday := d.now().AddDate(0, 0, -1)
		cutoff := start
		if end != nil {
			cutoff = *end
		}
		if cutoff.Before(yesterday) {
			return event, false, nil
		}
	}

	if p := ve.GetProperty(ics.ComponentPropertyLocation); p != nil {
		matched := false
		if uids, ok := p.ICalParameters["VVENUE"]; ok && len(uids) > 0 {
			if venue, ok := venues[uids[0]]; ok {
				event.Location = venue
				matched = true
			}
		}
		if !matched {
			event.RawLocation = unescapeText(p.Value)
		}
	}

	return event, true, nil
}

// componentTimes computes start and end for one VEVENT. A start property with
// an explicit TZID (or a UTC Z suffix) goes through the library's own
// timezone handling; a floating time is parsed from the raw text as a local
// clock reading instead. The two paths are not interchangeable: trusting the
// library for a floating value silently shifts times by the local UTC offset.
func (d *ICalendarDecoder) componentTimes(ve *ics.VEvent) (time.Time, *time.Time, error) {
	startProp := ve.GetProperty(ics.ComponentPropertyDtStart)
	if startProp == nil {
		return time.Time{}, nil, nil
	}

	zoned := hasExplicitZone(startProp)

	var start time.Time
	var err error
	if zoned {
		start, err = ve.GetStartAt()
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("failed to resolve DTSTART %q: %w", startProp.Value, err)
		}
	} else {
		start, err = parseFloatingTime(startProp.Value)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("failed to parse floating DTSTART %q: %w", startProp.Value, err)
		}
	}

	var end time.Time
	switch {
	case ve.GetProperty(ics.ComponentPropertyDtEnd) != nil:
		endProp := ve.GetProperty(ics.ComponentPropertyDtEnd)
		if zoned {
			end, err = ve.GetEndAt()
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("failed to resolve DTEND %q: %w", endProp.Value, err)
			}
		} else {
			end, err = parseFloatingTime(endProp.Value)
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("failed to parse floating DTEND %q: %w", endProp.Value, err)
			}
		}
	case ve.GetProperty(ics.ComponentProperty("DURATION")) != nil:
		duration, derr := parseICalDuration(ve.GetProperty(ics.ComponentProperty("DURATION")).Value)
		if derr != nil {
			return time.Time{}, nil, fmt.Errorf("failed to parse DURATION: %w", derr)
		}
		end = start.Add(duration)
	default:
		end = start
	}

	if end.Before(start) {
		end = start
	}
	return start, &end, nil
}

// hasExplicitZone reports whether a date-time property names its timezone,
// either through a TZID parameter or a trailing Z.
func hasExplicitZone(p *ics.IANAProperty) bool {
	if tzids, ok := p.ICalParameters["TZID"]; ok && len(tzids) > 0 {
		return true
	}
	return strings.HasSuffix(p.Value, "Z")
}

func parseFloatingTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "T") {
		return time.ParseInLocation("20060102T150405", value, time.Local)
	}
	return time.ParseInLocation("20060102", value, time.Local)
}

var durationPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

func parseICalDuration(value string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}

	n := func(s string) time.Duration {
		if s == "" {
			return 0
		}
		v, _ := strconv.Atoi(s)
		return time.Duration(v)
	}

	d := n(m[2])*7*24*time.Hour + n(m[3])*24*time.Hour +
		n(m[4])*time.Hour + n(m[5])*time.Minute + n(m[6])*time.Second
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

// scanVVenues extracts VVENUE blocks from the raw calendar text. VVENUE is
// outside the standard grammar, so the structured parser never sees it; the
// blocks are scanned out by their begin/end markers and read as a vCard-like
// key/value dump. A malformed block is logged and skipped, never fatal.
func scanVVenues(text string) map[string]*AbstractLocation {
	venues := map[string]*AbstractLocation{}

	for _, match := range vvenuePattern.FindAllStringSubmatch(text, -1) {
		venue, uid := parseVVenue(match[1])
		if uid == "" {
			slog.Warn("Skipping VVENUE block without UID")
			continue
		}
		venues[uid] = venue
	}

	return venues
}

func parseVVenue(block string) (*AbstractLocation, string) {
	venue := &AbstractLocation{}
	uid := ""

	for _, line := range unfoldLines(block) {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		// Strip property qualifiers, e.g. "NAME;CHARSET=UTF-8".
		if i := strings.Index(key, ";"); i >= 0 {
			key = key[:i]
		}
		value = unescapeText(value)

		switch strings.ToUpper(key) {
		case "UID":
			uid = value
		case "NAME":
			venue.Title = value
		case "DESCRIPTION":
			venue.Description = value
		case "ADDRESS":
			venue.StreetAddress = value
		case "CITY":
			venue.Locality = value
		case "REGION":
			venue.Region = value
		case "POSTALCODE":
			venue.PostalCode = value
		case "COUNTRY":
			venue.Country = value
		case "URL":
			venue.URL = value
		case "GEO":
			lat, lng, err := parseGeo(value)
			if err != nil {
				slog.Warn("Skipping unparsable VVENUE geo pair", "geo", value, "error", err)
				continue
			}
			venue.Latitude = &lat
			venue.Longitude = &lng
		}
	}

	return venue, uid
}

// unfoldLines joins RFC 5545 continuation lines (leading space or tab).
func unfoldLines(block string) []string {
	raw := strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n")
	var lines []string
	for _, line := range raw {
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += strings.TrimLeft(line, " \t")
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseGeo(value string) (float64, float64, error) {
	latStr, lngStr, found := strings.Cut(value, ";")
	if !found {
		return 0, 0, fmt.Errorf("geo pair %q is not semicolon-delimited", value)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

// unescapeText reverses RFC 5545 TEXT escaping.
func unescapeText(s string) string {
	replacer := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return replacer.Replace(s)
}
