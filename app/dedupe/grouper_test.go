package dedupe

import (
	"errors"
	"testing"
)

func groupingStore() *fakeStore {
	return newFakeStore(
		&fakeRecord{kind: "events", id: 1, attrs: map[string]any{"title": "Go Meetup", "url": "http://a", "start_time": "x"}},
		&fakeRecord{kind: "events", id: 2, attrs: map[string]any{"title": "Go Meetup", "url": "http://b", "start_time": "y"}},
		&fakeRecord{kind: "events", id: 3, attrs: map[string]any{"title": "Rust Meetup", "url": "http://b", "start_time": "z"}},
		&fakeRecord{kind: "events", id: 4, attrs: map[string]any{"title": "Quiet Night", "url": "http://c", "start_time": "w"}},
		&fakeRecord{kind: "events", id: 5, duplicateOf: 1, attrs: map[string]any{"title": "Go Meetup", "url": "http://a", "start_time": "x"}},
	)
}

func TestFindDuplicatesByField(t *testing.T) {
	checker := NewChecker(groupingStore(), eventProfile())

	groups, err := checker.FindDuplicatesBy("events", "title")
	if err != nil {
		t.Fatalf("FindDuplicatesBy failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	if len(groups[0]) != 2 {
		t.Fatalf("Expected group of 2, got %d", len(groups[0]))
	}
	if groups[0][0].RecordID() != 1 || groups[0][1].RecordID() != 2 {
		t.Errorf("Expected group [1 2], got [%d %d]", groups[0][0].RecordID(), groups[0][1].RecordID())
	}
}

func TestFindDuplicatesExcludesSquashedRecords(t *testing.T) {
	checker := NewChecker(groupingStore(), eventProfile())

	groups, err := checker.FindDuplicatesBy("events", "title")
	if err != nil {
		t.Fatalf("FindDuplicatesBy failed: %v", err)
	}
	for _, group := range groups {
		for _, r := range group {
			if r.RecordID() == 5 {
				t.Error("Squashed record 5 should not appear in groups")
			}
		}
	}
}

func TestFindDuplicatesByAny(t *testing.T) {
	checker := NewChecker(groupingStore(), eventProfile())

	groups, err := checker.FindDuplicatesBy("events", BasisAny)
	if err != nil {
		t.Fatalf("FindDuplicatesBy failed: %v", err)
	}
	// 1 and 2 share a title, 2 and 3 share a URL: one connected group of three.
	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	if len(groups[0]) != 3 {
		t.Fatalf("Expected group of 3, got %d", len(groups[0]))
	}
}

func TestFindDuplicatesByAll(t *testing.T) {
	store := newFakeStore(
		&fakeRecord{kind: "events", id: 1, attrs: map[string]any{"title": "A", "url": "u", "start_time": "s"}},
		&fakeRecord{kind: "events", id: 2, attrs: map[string]any{"title": "A", "url": "u", "start_time": "s"}},
		&fakeRecord{kind: "events", id: 3, attrs: map[string]any{"title": "A", "url": "other", "start_time": "s"}},
	)
	checker := NewChecker(store, eventProfile())

	groups, err := checker.FindDuplicatesBy("events", BasisAll)
	if err != nil {
		t.Fatalf("FindDuplicatesBy failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	if len(groups[0]) != 2 {
		t.Errorf("Expected group of 2, got %d", len(groups[0]))
	}
}

func TestFindDuplicatesSkipsAllEmptyKeys(t *testing.T) {
	store := newFakeStore(
		&fakeRecord{kind: "events", id: 1, attrs: map[string]any{"title": "", "url": "u1", "start_time": "s"}},
		&fakeRecord{kind: "events", id: 2, attrs: map[string]any{"title": "", "url": "u2", "start_time": "s"}},
	)
	checker := NewChecker(store, eventProfile())

	groups, err := checker.FindDuplicatesBy("events", "title")
	if err != nil {
		t.Fatalf("FindDuplicatesBy failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("Records with empty grouping values are not duplicates, got %d groups", len(groups))
	}
}

func TestFindDuplicatesByUnknownBasis(t *testing.T) {
	checker := NewChecker(groupingStore(), eventProfile())

	_, err := checker.FindDuplicatesBy("events", "no_such_field")
	if !errors.Is(err, ErrUnknownBasis) {
		t.Errorf("Expected ErrUnknownBasis, got %v", err)
	}

	_, err = checker.FindDuplicatesBy("unknown_kind", "title")
	if !errors.Is(err, ErrUnknownBasis) {
		t.Errorf("Expected ErrUnknownBasis for unknown kind, got %v", err)
	}

	_, err = checker.FindDuplicatesBy("events")
	if !errors.Is(err, ErrUnknownBasis) {
		t.Errorf("Expected ErrUnknownBasis for empty fields, got %v", err)
	}
}
