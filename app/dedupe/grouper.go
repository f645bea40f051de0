package dedupe

import (
	"fmt"
	"sort"
	"strings"
)

// Grouping bases beyond a concrete field name: "any" groups records sharing
// any non-empty significant field value, "all" requires every field to match.
const (
	BasisAny = "any"
	BasisAll = "all"
)

// FindDuplicatesBy groups primary records that are mutually equal on the
// requested basis, for operator review. Secondary (already squashed) records
// never appear in the output.
func (c *Checker) FindDuplicatesBy(kind string, fields ...string) ([][]Record, error) {
	profile, ok := c.profiles[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrUnknownBasis, kind)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields given", ErrUnknownBasis)
	}

	special := len(fields) == 1 && (fields[0] == BasisAny || fields[0] == BasisAll)
	if !special {
		for _, f := range fields {
			if !contains(profile.Fields, f) {
				return nil, fmt.Errorf("%w: %s has no field %q", ErrUnknownBasis, kind, f)
			}
		}
	}

	records, err := c.store.Primaries(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	switch {
	case special && fields[0] == BasisAny:
		return groupByAnyField(records, profile.Fields), nil
	case special && fields[0] == BasisAll:
		return groupByKey(records, profile.Fields), nil
	default:
		return groupByKey(records, fields), nil
	}
}

// groupByKey buckets records on the concatenation of the named field values.
// Groups where every named field is empty are not duplicates of anything.
func groupByKey(records []Record, fields []string) [][]Record {
	buckets := map[string][]Record{}
	for _, r := range records {
		attrs := r.SignificantAttributes()
		parts := make([]string, 0, len(fields))
		empty := true
		for _, f := range fields {
			v := attrValue(attrs, f)
			if v != "" {
				empty = false
			}
			parts = append(parts, v)
		}
		if empty {
			continue
		}
		key := strings.Join(parts, "\x00")
		buckets[key] = append(buckets[key], r)
	}
	return collectGroups(buckets)
}

// groupByAnyField unions records that share a non-empty value on any single
// significant field.
func groupByAnyField(records []Record, fields []string) [][]Record {
	parent := make([]int, len(records))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, f := range fields {
		seen := map[string]int{}
		for i, r := range records {
			v := attrValue(r.SignificantAttributes(), f)
			if v == "" {
				continue
			}
			if j, ok := seen[v]; ok {
				union(j, i)
			} else {
				seen[v] = i
			}
		}
	}

	buckets := map[string][]Record{}
	for i, r := range records {
		key := fmt.Sprintf("%d", find(i))
		buckets[key] = append(buckets[key], r)
	}
	return collectGroups(buckets)
}

func collectGroups(buckets map[string][]Record) [][]Record {
	groups := make([][]Record, 0)
	for _, g := range buckets {
		if len(g) < 2 {
			continue
		}
		sort.Slice(g, func(i, j int) bool { return g[i].RecordID() < g[j].RecordID() })
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0].RecordID() < groups[j][0].RecordID() })
	return groups
}

func attrValue(attrs map[string]any, field string) string {
	v, ok := attrs[field]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
