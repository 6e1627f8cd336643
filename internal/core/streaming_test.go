package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("entity_stable_id\tname")...),
			expected: "entity_stable_id\tname",
		},
		{
			name:     "file without BOM",
			input:    []byte("entity_stable_id\tname"),
			expected: "entity_stable_id\tname",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
		{
			name:     "short input",
			input:    []byte("a"),
			expected: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewBOMSkippingReader(bytes.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestCountingReader(t *testing.T) {
	r := NewCountingReader(strings.NewReader("0123456789"), 10)
	buf := make([]byte, 4)

	_, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4), r.BytesRead)
	assert.Equal(t, 40, r.Progress())

	_, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, 100, r.Progress())

	assert.Equal(t, 0, NewCountingReader(strings.NewReader("x"), 0).Progress())

	// A stale size never reports more than 100.
	short := NewCountingReader(strings.NewReader("0123456789"), 5)
	_, err = io.ReadAll(short)
	require.NoError(t, err)
	assert.Equal(t, 100, short.Progress())
}

func readAll(t *testing.T, input string) ([]string, []Record) {
	t.Helper()
	s := NewRecordStream(strings.NewReader(input))
	header, err := s.Header()
	require.NoError(t, err)

	var records []Record
	for {
		rec, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
	return header, records
}

func TestRecordStream(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantHeader []string
		wantLines  []int
		wantFields [][]string
	}{
		{
			name:       "header and two records",
			input:      "entity_stable_id\tname\nT1\tAlpha\nT2\tBeta\n",
			wantHeader: []string{"entity_stable_id", "name"},
			wantLines:  []int{2, 3},
			wantFields: [][]string{{"T1", "Alpha"}, {"T2", "Beta"}},
		},
		{
			name:       "no trailing newline",
			input:      "entity_stable_id\nT1",
			wantHeader: []string{"entity_stable_id"},
			wantLines:  []int{2},
			wantFields: [][]string{{"T1"}},
		},
		{
			name:       "CRLF line endings",
			input:      "entity_stable_id\tname\r\nT1\tAlpha\r\n",
			wantHeader: []string{"entity_stable_id", "name"},
			wantLines:  []int{2},
			wantFields: [][]string{{"T1", "Alpha"}},
		},
		{
			name:       "empty lines are skipped but counted",
			input:      "entity_stable_id\n\nT1\n\n\nT2\n",
			wantHeader: []string{"entity_stable_id"},
			wantLines:  []int{3, 6},
			wantFields: [][]string{{"T1"}, {"T2"}},
		},
		{
			name:       "header only",
			input:      "entity_stable_id\tname\n",
			wantHeader: []string{"entity_stable_id", "name"},
		},
		{
			name:       "empty fields are kept",
			input:      "entity_stable_id\tfoo\tbar\nA\t\tv2\n",
			wantHeader: []string{"entity_stable_id", "foo", "bar"},
			wantLines:  []int{2},
			wantFields: [][]string{{"A", "", "v2"}},
		},
		{
			name:       "BOM before header",
			input:      "\xEF\xBB\xBFentity_stable_id\nT1\n",
			wantHeader: []string{"entity_stable_id"},
			wantLines:  []int{2},
			wantFields: [][]string{{"T1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, records := readAll(t, tt.input)
			assert.Equal(t, tt.wantHeader, header)
			require.Len(t, records, len(tt.wantLines))
			for i, rec := range records {
				assert.Equal(t, tt.wantLines[i], rec.Line)
				assert.Equal(t, tt.wantFields[i], rec.Fields)
			}
		})
	}
}

func TestRecordStream_EmptyFile(t *testing.T) {
	s := NewRecordStream(strings.NewReader(""))
	_, err := s.Header()
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestRecordStream_HeaderTwice(t *testing.T) {
	s := NewRecordStream(strings.NewReader("entity_stable_id\n"))
	_, err := s.Header()
	require.NoError(t, err)
	_, err = s.Header()
	assert.Error(t, err)
}

func TestRecordStream_EOFIsSticky(t *testing.T) {
	s := NewRecordStream(strings.NewReader("entity_stable_id\nT1\n"))
	_, err := s.Header()
	require.NoError(t, err)

	_, err = s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}
