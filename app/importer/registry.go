package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Registry holds the configured decoders. It is built once at startup and
// passed by reference; decoders self-describe through the Decoder interface.
type Registry struct {
	decoders []Decoder
}

func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{}
	for _, d := range decoders {
		r.Register(d)
	}
	return r
}

func (r *Registry) Register(d Decoder) {
	r.decoders = append(r.decoders, d)
}

// Get returns the decoder with the given label, or nil.
func (r *Registry) Get(label string) Decoder {
	for _, d := range r.decoders {
		if d.Label() == label {
			return d
		}
	}
	return nil
}

// Labels returns all registered decoder labels, sorted.
func (r *Registry) Labels() []string {
	labels := make([]string, 0, len(r.decoders))
	for _, d := range r.decoders {
		labels = append(labels, d.Label())
	}
	sort.Strings(labels)
	return labels
}

// CandidatesFor orders the decoders for a URL: decoders whose URL pattern
// matches come first, then the pattern-less content-format decoders, each
// group alphabetical by label. A platform decoder therefore claims URLs it
// recognizes even when a generic calendar decoder could also parse the
// fetched content.
func (r *Registry) CandidatesFor(url string) []Decoder {
	var matched, generic []Decoder
	for _, d := range r.decoders {
		pattern := d.URLPattern()
		switch {
		case pattern == nil:
			generic = append(generic, d)
		case pattern.MatchString(url):
			matched = append(matched, d)
		}
	}

	byLabel := func(list []Decoder) {
		sort.Slice(list, func(i, j int) bool { return list[i].Label() < list[j].Label() })
	}
	byLabel(matched)
	byLabel(generic)

	return append(matched, generic...)
}

// Dispatch tries each candidate decoder in order and returns the first
// non-empty result along with the winning decoder's label. ErrNotFound from
// a decoder stops the loop: the resource is confirmed absent, and falling
// through would let a generic decoder decode a 404 page.
func (r *Registry) Dispatch(ctx context.Context, in Input) ([]AbstractEvent, string, error) {
	for _, d := range r.CandidatesFor(in.URL) {
		events, err := d.Decode(ctx, in)
		if err != nil {
			return nil, d.Label(), fmt.Errorf("decoder %s: %w", d.Label(), err)
		}
		if len(events) > 0 {
			return events, d.Label(), nil
		}
		slog.Debug("Decoder yielded no events, trying next", "decoder", d.Label(), "url", in.URL)
	}
	return nil, "", nil
}
