// Package machinetag parses namespace:predicate=value tags and resolves them
// to canonical external URLs.
package machinetag

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Namespace and predicate accept anything except the delimiters themselves,
// so names like last.fm parse.
var tagPattern = regexp.MustCompile(`^([^:=]+):([^:=]+)=(.+)$`)

// MachineTag is a structured cross-reference to an external resource.
type MachineTag struct {
	Namespace string
	Predicate string
	Value     string
}

// Parse splits a tag of the form namespace:predicate=value. Tags not matching
// the pattern are not machine tags.
func Parse(tag string) (MachineTag, bool) {
	m := tagPattern.FindStringSubmatch(strings.TrimSpace(tag))
	if m == nil {
		return MachineTag{}, false
	}
	return MachineTag{
		Namespace: strings.ToLower(m[1]),
		Predicate: strings.ToLower(m[2]),
		Value:     m[3],
	}, true
}

func (t MachineTag) String() string {
	return fmt.Sprintf("%s:%s=%s", t.Namespace, t.Predicate, t.Value)
}

// Predicates that denote venue cross-references rather than events.
var venuePredicates = map[string]bool{
	"venue": true,
	"place": true,
}

func (t MachineTag) IsVenue() bool {
	return venuePredicates[t.Predicate]
}

// Namespace describes one external platform's URL templates. Defunct
// namespaces resolve through a web-archive snapshot because the platform no
// longer serves the original URLs.
type Namespace struct {
	Defunct    bool              `yaml:"defunct"`
	Predicates map[string]string `yaml:"predicates"`
}

func defaultNamespaces() map[string]Namespace {
	return map[string]Namespace{
		"meetup": {
			Predicates: map[string]string{
				"event": "https://www.meetup.com/events/%s/",
				"group": "https://www.meetup.com/%s/",
			},
		},
		"facebook": {
			Predicates: map[string]string{
				"event": "https://www.facebook.com/events/%s/",
			},
		},
		"plancast": {
			Predicates: map[string]string{
				"plan": "http://plancast.com/p/%s/",
			},
		},
		"upcoming": {
			Defunct: true,
			Predicates: map[string]string{
				"event": "http://upcoming.yahoo.com/event/%s/",
				"venue": "http://upcoming.yahoo.com/venue/%s/",
			},
		},
		"gowalla": {
			Defunct: true,
			Predicates: map[string]string{
				"spot": "http://gowalla.com/spots/%s",
			},
		},
		"shizzow": {
			Defunct: true,
			Predicates: map[string]string{
				"place": "http://www.shizzow.com/places/%s",
			},
		},
		"epdx": {
			Predicates: map[string]string{
				"company": "http://epdx.org/companies/%s",
				"group":   "http://epdx.org/groups/%s",
			},
		},
		"yelp": {
			Predicates: map[string]string{
				"biz": "https://www.yelp.com/biz/%s",
			},
		},
		"foursquare": {
			Predicates: map[string]string{
				"venue": "https://foursquare.com/v/%s",
			},
		},
	}
}

const archiveTimeFormat = "20060102150405"

// Snapshot date used when no record carrying the tag pins down a better one.
var defaultArchiveTime = time.Date(2013, 7, 1, 0, 0, 0, 0, time.UTC)

// ArchiveDateFunc returns the earliest time a given tag string was seen on a
// persisted record, or nil when unknown.
type ArchiveDateFunc func(tag string) *time.Time

type Resolver struct {
	namespaces  map[string]Namespace
	archiveDate ArchiveDateFunc
}

func NewResolver(archiveDate ArchiveDateFunc) *Resolver {
	return &Resolver{
		namespaces:  defaultNamespaces(),
		archiveDate: archiveDate,
	}
}

// LoadOverrides merges namespace definitions from a YAML file over the
// built-in table.
func (r *Resolver) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read machine tag file: %w", err)
	}

	var file struct {
		Namespaces map[string]Namespace `yaml:"namespaces"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse machine tag file: %w", err)
	}

	for name, ns := range file.Namespaces {
		r.namespaces[strings.ToLower(name)] = ns
	}
	return nil
}

// URL resolves a tag string to its canonical external URL. It returns ""
// when the tag is not a machine tag or no template is configured for its
// namespace and predicate. URLs on defunct namespaces are wrapped behind a
// web-archive snapshot dated to the earliest record carrying the tag.
func (r *Resolver) URL(tag string) string {
	parsed, ok := Parse(tag)
	if !ok {
		return ""
	}

	ns, ok := r.namespaces[parsed.Namespace]
	if !ok {
		return ""
	}
	template, ok := ns.Predicates[parsed.Predicate]
	if !ok {
		return ""
	}

	resolved := fmt.Sprintf(template, parsed.Value)
	if !ns.Defunct {
		return resolved
	}

	at := defaultArchiveTime
	if r.archiveDate != nil {
		if t := r.archiveDate(parsed.String()); t != nil {
			at = *t
		}
	}
	return fmt.Sprintf("https://web.archive.org/web/%s/%s", at.UTC().Format(archiveTimeFormat), resolved)
}
