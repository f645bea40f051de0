package importer

import (
	"bytes"
	"context"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSDecoder handles event sources that publish RSS or Atom feeds of dated
// entries. An entry's published time becomes the event start; undated
// entries are skipped, and with the old-event filter on only entries dated
// in the future survive, so ordinary news feeds yield nothing.
type RSSDecoder struct {
	fetcher *Fetcher
	parser  *gofeed.Parser

	SkipOld bool

	now func() time.Time
}

func NewRSSDecoder(fetcher *Fetcher, skipOld bool) *RSSDecoder {
	return &RSSDecoder{
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
		SkipOld: skipOld,
		now:     time.Now,
	}
}

func (d *RSSDecoder) Label() string { return "rss" }

func (d *RSSDecoder) URLPattern() *regexp.Regexp { return nil }

func (d *RSSDecoder) Decode(ctx context.Context, in Input) ([]AbstractEvent, error) {
	content := in.Content
	if content == nil {
		var err error
		content, err = d.fetcher.Read(ctx, in.URL)
		if err != nil {
			return nil, err
		}
	}

	feed, err := d.parser.Parse(bytes.NewReader(content))
	if err != nil {
		// Not a feed: not for this decoder.
		return nil, nil
	}

	yesterday := d.now().AddDate(0, 0, -1)

	var events []AbstractEvent
	for _, item := range feed.Items {
		if item.PublishedParsed == nil {
			continue
		}
		start := item.PublishedParsed.UTC()
		if d.SkipOld && start.Before(yesterday) {
			continue
		}

		events = append(events, AbstractEvent{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.Link,
			Start:       start,
			Tags:        item.Categories,
		})
	}

	return events, nil
}
