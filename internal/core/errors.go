package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUsage marks invalid invocation arguments. Raised before any file access.
	ErrUsage = errors.New("usage error")

	// ErrMissingRequiredColumn is returned when the header lacks entity_stable_id.
	ErrMissingRequiredColumn = errors.New("missing required column")

	// ErrEmptyFile is returned when the input has no header line.
	ErrEmptyFile = errors.New("empty file")

	// ErrRecordsFailed is returned at the end of a run in which at least one
	// record could not be committed. All other records were still attempted.
	ErrRecordsFailed = errors.New("records failed to import")
)

// MalformedRecordError reports a row that is too short for a referenced column.
// It aborts the remaining run.
type MalformedRecordError struct {
	Line   int
	Column string
	Index  int
	Fields int
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at line %d: column %q is at index %d but row has %d fields",
		e.Line, e.Column, e.Index, e.Fields)
}

// PropertyWriteError reports the property writes that failed for one entity.
// The enclosing entity transaction is rolled back when this is returned.
type PropertyWriteError struct {
	StableID string
	Failed   []PropertyWrite
}

func (e *PropertyWriteError) Error() string {
	keys := make([]string, len(e.Failed))
	for i, w := range e.Failed {
		keys[i] = w.Key
	}
	msg := fmt.Sprintf("property write failed for %s (keys: %s)", e.StableID, strings.Join(keys, ", "))
	if len(e.Failed) > 0 && e.Failed[0].Err != nil {
		msg += ": " + e.Failed[0].Err.Error()
	}
	return msg
}

func (e *PropertyWriteError) Unwrap() error {
	if len(e.Failed) == 0 {
		return nil
	}
	return e.Failed[0].Err
}

// EntityTypeMismatchError reports a stable id that is already stored as a
// genetic entity of another type. The record is skipped; nothing is written.
type EntityTypeMismatchError struct {
	StableID  string
	Existing  EntityType
	Requested EntityType
}

func (e *EntityTypeMismatchError) Error() string {
	return fmt.Sprintf("stable id %s is already a %s entity, not %s", e.StableID, e.Existing, e.Requested)
}

// RecordError wraps a per-record store failure with its location.
type RecordError struct {
	Line     int
	StableID string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d (%s): %v", e.Line, e.StableID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the remaining run rather than be
// collected as a failed record.
func IsFatal(err error) bool {
	var malformed *MalformedRecordError
	return errors.As(err, &malformed) ||
		errors.Is(err, ErrMissingRequiredColumn) ||
		errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrUsage)
}
