package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:     "usage error",
			err:      fmt.Errorf("%w: --data is required", ErrUsage),
			wantCode: "USE001",
		},
		{
			name:        "missing stable id column",
			err:         fmt.Errorf("%w %q", ErrMissingRequiredColumn, StableIDColumn),
			wantCode:    "HDR001",
			wantMessage: "Required column is missing from the header",
		},
		{
			name:     "empty file",
			err:      ErrEmptyFile,
			wantCode: "HDR002",
		},
		{
			name:     "malformed record",
			err:      &MalformedRecordError{Line: 3, Column: "url", Index: 3, Fields: 2},
			wantCode: "REC001",
		},
		{
			name:     "entity type mismatch",
			err:      &RecordError{Line: 2, StableID: "G1", Err: &EntityTypeMismatchError{StableID: "G1", Existing: EntityGenericAssay, Requested: EntityTreatment}},
			wantCode: "REC002",
		},
		{
			name: "property write wraps a database error",
			err: &PropertyWriteError{StableID: "A", Failed: []PropertyWrite{
				{Key: "foo", Err: errors.New("duplicate key value violates unique constraint")},
			}},
			wantCode: "PROP001",
		},
		{
			name:     "too many imports",
			err:      fmt.Errorf("acquire: %w", ErrTooManyImports),
			wantCode: "IMP001",
		},
		{
			name:     "records failed",
			err:      fmt.Errorf("%w: 1 of 3 records", ErrRecordsFailed),
			wantCode: "IMP002",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:     "unique constraint maps correctly",
			err:      errors.New("UNIQUE constraint failed: genetic_entity.stable_id"),
			wantCode: "DB002",
		},
		{
			name:        "foreign key maps correctly",
			err:         errors.New("violates foreign key constraint"),
			wantCode:    "DB003",
			wantMessage: "Referenced record does not exist",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:     "deadline exceeded",
			err:      errors.New("context deadline exceeded"),
			wantCode: "DB006",
		},
		{
			name:     "deadlock",
			err:      errors.New("deadlock detected"),
			wantCode: "DB007",
		},
		{
			name:     "missing local file",
			err:      errors.New("open /tmp/x.tsv: no such file or directory"),
			wantCode: "SRC001",
		},
		{
			name:     "missing s3 object",
			err:      errors.New("operation error S3: GetObject, NoSuchKey"),
			wantCode: "SRC002",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("something completely unexpected"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, got.Message)
			}
			if tt.err != nil {
				assert.NotEmpty(t, got.Action)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	assert.Equal(t, "", FormatUserError(nil))
	assert.Equal(t,
		"The input file is empty (Code: HDR002). Check the file path and contents",
		FormatUserError(ErrEmptyFile))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrEmptyFile))
	assert.True(t, IsFatal(fmt.Errorf("x: %w", ErrUsage)))
	assert.True(t, IsFatal(&MalformedRecordError{}))
	assert.False(t, IsFatal(errors.New("connection reset")))
	assert.False(t, IsFatal(&PropertyWriteError{StableID: "A"}))
	assert.False(t, IsFatal(&EntityTypeMismatchError{StableID: "A"}))
}
