package dedupe

import "errors"

var (
	// ErrDuplicateLoop indicates a duplicate_of chain that revisits a node.
	// It signals data corruption and is always fatal to the triggering operation.
	ErrDuplicateLoop = errors.New("duplicate chain contains a loop")

	// ErrUnknownBasis indicates a grouping request naming a field the type
	// does not have.
	ErrUnknownBasis = errors.New("unknown duplicate grouping basis")
)

// Record is any persisted entity that participates in duplicate checking.
type Record interface {
	Kind() string
	RecordID() int64
	DuplicateOf() int64

	// SignificantAttributes returns the attributes considered for duplicate
	// matching, keyed by column name. Identifiers, timestamps and the
	// duplicate_of pointer are excluded, as are associations that have not
	// been resolved yet. A nil value means the column is NULL.
	SignificantAttributes() map[string]any
}

// Store is the persistence capability duplicate checking needs: lookups,
// attribute-equality queries and the two mutations squashing performs.
type Store interface {
	Get(kind string, id int64) (Record, error)
	FindByAttributes(kind string, attrs map[string]any) ([]Record, error)
	Primaries(kind string) ([]Record, error)
	DuplicatesOf(kind string, id int64) ([]Record, error)
	SetDuplicateOf(kind string, id int64, primaryID int64) error
	RepointAssociations(kind string, duplicateIDs []int64, primaryID int64) error
}

// Profile describes how one record type takes part in duplicate checking.
type Profile struct {
	Kind   string
	Fields []string // significant attribute names, used to validate grouping bases

	// AfterSquash runs once per successful squash, with the surviving
	// primary. Used for cache invalidation and similar follow-ups.
	AfterSquash func(primary Record) error
}

// SquashFailure records one duplicate that could not be squashed.
type SquashFailure struct {
	ID  int64
	Err error
}

// SquashReport is the outcome of a squash operation. Bulk admin squashes
// inspect it instead of aborting on the first failed group member.
type SquashReport struct {
	PrimaryID int64
	Squashed  []int64
	Failures  []SquashFailure
}

func (r SquashReport) OK() bool {
	return len(r.Failures) == 0
}
