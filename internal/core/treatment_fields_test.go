package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTreatmentFields(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		prefix string
		fields []string
		want   TreatmentFields
	}{
		{
			name:   "all columns present",
			header: []string{"entity_stable_id", "name", "description", "url"},
			fields: []string{"T1", "Alpha", "Desc", "http://x"},
			want:   TreatmentFields{StableID: "T1", Name: "Alpha", Description: "Desc", ReferenceURL: "http://x"},
		},
		{
			name:   "only stable id",
			header: []string{"entity_stable_id"},
			fields: []string{"T1"},
			want:   TreatmentFields{StableID: "T1", Name: "T1", Description: "T1", ReferenceURL: "T1"},
		},
		{
			name:   "name present but description missing falls back as a group",
			header: []string{"entity_stable_id", "name"},
			fields: []string{"T1", "Alpha"},
			want:   TreatmentFields{StableID: "T1", Name: "T1", Description: "T1", ReferenceURL: "T1"},
		},
		{
			name:   "url missing",
			header: []string{"entity_stable_id", "name", "description"},
			fields: []string{"T1", "Alpha", "Desc"},
			want:   TreatmentFields{StableID: "T1", Name: "T1", Description: "T1", ReferenceURL: "T1"},
		},
		{
			name:   "prefixed columns",
			header: []string{"entity_stable_id", "META_NAME", "meta_description", "meta_url"},
			prefix: "meta_",
			fields: []string{"T1", "Alpha", "Desc", "http://x"},
			want:   TreatmentFields{StableID: "T1", Name: "Alpha", Description: "Desc", ReferenceURL: "http://x"},
		},
		{
			name:   "unprefixed columns ignored when prefix is set",
			header: []string{"entity_stable_id", "name", "description", "url"},
			prefix: "meta_",
			fields: []string{"T1", "Alpha", "Desc", "http://x"},
			want:   TreatmentFields{StableID: "T1", Name: "T1", Description: "T1", ReferenceURL: "T1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := ResolveHeader(tt.header)
			require.NoError(t, err)
			cols := ResolveTreatmentColumns(idx, tt.prefix)

			got, err := resolveTreatmentFields(Record{Line: 2, Fields: tt.fields}, cols)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTreatmentFields_ShortRow(t *testing.T) {
	idx, err := ResolveHeader([]string{"entity_stable_id", "name", "description", "url"})
	require.NoError(t, err)

	_, err = resolveTreatmentFields(Record{Line: 4, Fields: []string{"T1", "Alpha"}}, ResolveTreatmentColumns(idx, ""))
	var malformed *MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 4, malformed.Line)
	assert.Equal(t, DescriptionColumn, malformed.Column)
}
