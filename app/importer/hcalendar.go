package importer

import (
	"bytes"
	"context"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// HCalendarDecoder extracts hCalendar microformat events out of HTML pages.
// It maps a small fixed field table per .vevent node and ignores everything
// else the microformat could carry.
type HCalendarDecoder struct {
	fetcher *Fetcher
}

func NewHCalendarDecoder(fetcher *Fetcher) *HCalendarDecoder {
	return &HCalendarDecoder{fetcher: fetcher}
}

func (d *HCalendarDecoder) Label() string { return "hcal" }

func (d *HCalendarDecoder) URLPattern() *regexp.Regexp { return nil }

func (d *HCalendarDecoder) Decode(ctx context.Context, in Input) ([]AbstractEvent, error) {
	content := in.Content
	if content == nil {
		var err error
		content, err = d.fetcher.Read(ctx, in.URL)
		if err != nil {
			return nil, err
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		// Not parsable as HTML: not for this decoder.
		return nil, nil
	}

	var events []AbstractEvent
	doc.Find(".vevent").Each(func(_ int, node *goquery.Selection) {
		event, ok := d.decodeNode(node)
		if ok {
			events = append(events, event)
		}
	})

	return events, nil
}

func (d *HCalendarDecoder) decodeNode(node *goquery.Selection) (AbstractEvent, bool) {
	var event AbstractEvent

	event.Title = nodeText(node, ".summary")
	event.Description = nodeText(node, ".description")

	if href, ok := node.Find(".url").First().Attr("href"); ok {
		event.URL = href
	}

	start, ok := parseHCalDate(node, ".dtstart")
	if !ok {
		slog.Debug("Skipping hCalendar node without a parsable dtstart", "title", event.Title)
		return event, false
	}
	event.Start = start

	if end, ok := parseHCalDate(node, ".dtend"); ok {
		event.End = &end
	}

	if location := nodeText(node, ".location"); location != "" {
		event.RawLocation = location
	}

	return event, true
}

func nodeText(node *goquery.Selection, selector string) string {
	return strings.TrimSpace(node.Find(selector).First().Text())
}

// parseHCalDate reads a dtstart/dtend node, preferring the machine-readable
// title attribute of the abbr pattern over the human-readable text. The date
// is HTML-entity decoded first; extraction leaves entities like &nbsp; in the
// value, which trips up date parsing otherwise.
func parseHCalDate(node *goquery.Selection, selector string) (time.Time, bool) {
	sel := node.Find(selector).First()
	if sel.Length() == 0 {
		return time.Time{}, false
	}

	value, ok := sel.Attr("title")
	if !ok || strings.TrimSpace(value) == "" {
		value = sel.Text()
	}

	value = strings.TrimSpace(html.UnescapeString(value))
	value = strings.ReplaceAll(value, "\u00a0", " ")
	if value == "" {
		return time.Time{}, false
	}

	t, err := dateparse.ParseIn(value, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
