package core

import (
	"fmt"
	"strings"
)

// StableIDColumn is the only column every input file must carry.
const StableIDColumn = "entity_stable_id"

// Optional treatment columns, each prefixed with the configured meta field prefix.
const (
	NameColumn        = "name"
	DescriptionColumn = "description"
	URLColumn         = "url"
)

// Absent is the position returned for a column that is not in the header.
const Absent = -1

// HeaderIndex maps column names (lowercase) to their position in the row.
// Built once per file; not modified afterwards.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching; when a name repeats,
// the first occurrence wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := normalizeColumn(h)
		if _, seen := idx[key]; seen {
			continue
		}
		idx[key] = i
	}
	return idx
}

// ResolveHeader builds the index for a header row and checks that the
// stable id column is present.
func ResolveHeader(header []string) (HeaderIndex, error) {
	idx := MakeHeaderIndex(header)
	if idx.Position(StableIDColumn) == Absent {
		return nil, fmt.Errorf("%w %q", ErrMissingRequiredColumn, StableIDColumn)
	}
	return idx, nil
}

// Position returns the zero-based column of name, or Absent.
func (h HeaderIndex) Position(name string) int {
	if pos, ok := h[normalizeColumn(name)]; ok {
		return pos
	}
	return Absent
}

// Has reports whether name is a column of the header.
func (h HeaderIndex) Has(name string) bool {
	return h.Position(name) != Absent
}

// normalizeColumn folds case and drops surrounding whitespace, so a padded
// cell such as " name" matches "name" where an exact comparison would not.
func normalizeColumn(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// field returns rec.Fields[pos], or a MalformedRecordError when the row is
// too short to hold pos.
func field(rec Record, pos int, column string) (string, error) {
	if pos < 0 || pos >= len(rec.Fields) {
		return "", &MalformedRecordError{
			Line:   rec.Line,
			Column: column,
			Index:  pos,
			Fields: len(rec.Fields),
		}
	}
	return rec.Fields[pos], nil
}
