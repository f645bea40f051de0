package dedupe

import (
	"fmt"
	"log/slog"
)

// Chains are expected to be depth 1 in practice; the bound is a defensive
// backstop in addition to the visited set.
const maxChainDepth = 50

type Checker struct {
	store    Store
	profiles map[string]Profile
}

func NewChecker(store Store, profiles ...Profile) *Checker {
	byKind := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		byKind[p.Kind] = p
	}
	return &Checker{store: store, profiles: byKind}
}

// FindExactDuplicates returns other persisted records of the same kind whose
// significant attributes all equal the given record's.
func (c *Checker) FindExactDuplicates(record Record) ([]Record, error) {
	attrs := record.SignificantAttributes()
	if len(attrs) == 0 {
		return nil, nil
	}

	matches, err := c.store.FindByAttributes(record.Kind(), attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates: %w", err)
	}

	others := make([]Record, 0, len(matches))
	for _, m := range matches {
		if m.RecordID() != record.RecordID() {
			others = append(others, m)
		}
	}
	return others, nil
}

// Originator follows the duplicate_of chain to the primary record. A chain
// that revisits a node raises ErrDuplicateLoop.
func (c *Checker) Originator(record Record) (Record, error) {
	visited := map[int64]bool{}
	current := record

	for hops := 0; hops < maxChainDepth; hops++ {
		if visited[current.RecordID()] {
			return nil, fmt.Errorf("%w: %s %d", ErrDuplicateLoop, record.Kind(), record.RecordID())
		}
		visited[current.RecordID()] = true

		if current.DuplicateOf() == 0 {
			return current, nil
		}

		next, err := c.store.Get(current.Kind(), current.DuplicateOf())
		if err != nil {
			return nil, fmt.Errorf("failed to follow duplicate chain: %w", err)
		}
		current = next
	}

	return nil, fmt.Errorf("%w: %s %d exceeds %d hops", ErrDuplicateLoop, record.Kind(), record.RecordID(), maxChainDepth)
}

// Squash merges each duplicate into the primary: associations referring to a
// duplicate are repointed at the primary, the duplicate's duplicate_of is set,
// and records already marked as duplicates of the squashed one follow along.
// Failures are collected per duplicate so bulk squashes can continue.
func (c *Checker) Squash(kind string, primaryID int64, duplicateIDs []int64) SquashReport {
	report := SquashReport{PrimaryID: primaryID}

	primary, err := c.store.Get(kind, primaryID)
	if err != nil {
		report.Failures = append(report.Failures, SquashFailure{ID: primaryID, Err: fmt.Errorf("failed to load primary: %w", err)})
		return report
	}

	// Squashing into a secondary record would extend the chain; resolve the
	// intended primary first.
	primary, err = c.Originator(primary)
	if err != nil {
		report.Failures = append(report.Failures, SquashFailure{ID: primaryID, Err: err})
		return report
	}
	report.PrimaryID = primary.RecordID()

	squashedAny := false
	for _, dupID := range duplicateIDs {
		if dupID == primary.RecordID() {
			report.Failures = append(report.Failures, SquashFailure{ID: dupID, Err: fmt.Errorf("cannot squash %s %d into itself", kind, dupID)})
			continue
		}

		if err := c.squashOne(kind, primary, dupID); err != nil {
			slog.Error("Squash failed", "kind", kind, "primary", primary.RecordID(), "duplicate", dupID, "error", err)
			report.Failures = append(report.Failures, SquashFailure{ID: dupID, Err: err})
			continue
		}
		report.Squashed = append(report.Squashed, dupID)
		squashedAny = true
	}

	if squashedAny {
		if profile, ok := c.profiles[kind]; ok && profile.AfterSquash != nil {
			if err := profile.AfterSquash(primary); err != nil {
				slog.Error("After-squash hook failed", "kind", kind, "primary", primary.RecordID(), "error", err)
			}
		}
	}

	return report
}

func (c *Checker) squashOne(kind string, primary Record, dupID int64) error {
	dup, err := c.store.Get(kind, dupID)
	if err != nil {
		return fmt.Errorf("failed to load duplicate: %w", err)
	}

	// Records already squashed into this duplicate move to the new primary,
	// keeping every chain at depth 1.
	transitive, err := c.store.DuplicatesOf(kind, dup.RecordID())
	if err != nil {
		return fmt.Errorf("failed to list transitive duplicates: %w", err)
	}
	for _, t := range transitive {
		if err := c.store.SetDuplicateOf(kind, t.RecordID(), primary.RecordID()); err != nil {
			return fmt.Errorf("failed to re-mark transitive duplicate %d: %w", t.RecordID(), err)
		}
	}

	if err := c.store.RepointAssociations(kind, []int64{dup.RecordID()}, primary.RecordID()); err != nil {
		return fmt.Errorf("failed to repoint associations: %w", err)
	}

	if err := c.store.SetDuplicateOf(kind, dup.RecordID(), primary.RecordID()); err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}

	return nil
}
