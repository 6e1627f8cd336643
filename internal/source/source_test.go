package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolve_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "treatments.tsv")
	writeFile(t, path, "entity_stable_id\nT1\n")

	r := NewResolver(nil)
	inputs, err := r.Resolve(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, path, inputs[0].Ref)
	assert.Equal(t, int64(len("entity_stable_id\nT1\n")), inputs[0].Size)

	rc, err := r.Open(context.Background(), inputs[0])
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "entity_stable_id\nT1\n", string(data))
}

func TestResolve_LocalErrors(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(nil)

	_, err := r.Resolve(context.Background(), filepath.Join(dir, "missing.tsv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = r.Resolve(context.Background(), dir)
	assert.ErrorContains(t, err, "is a directory")

	_, err = r.Resolve(context.Background(), filepath.Join(dir, "*.tsv"))
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = r.Resolve(context.Background(), "  ")
	assert.Error(t, err)

	_, err = r.Resolve(context.Background(), "s3://bucket/key.tsv")
	assert.ErrorContains(t, err, "no S3 source configured")
}

func TestResolve_LocalGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.tsv"), "x")
	writeFile(t, filepath.Join(dir, "a.tsv"), "x")
	writeFile(t, filepath.Join(dir, "nested", "c.tsv"), "x")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dir.tsv"), 0o755))

	r := NewResolver(nil)

	inputs, err := r.Resolve(context.Background(), filepath.Join(dir, "*.tsv"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.tsv"), filepath.Join(dir, "b.tsv")}, refs(inputs))

	inputs, err = r.Resolve(context.Background(), filepath.Join(dir, "**", "*.tsv"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.tsv"),
		filepath.Join(dir, "b.tsv"),
		filepath.Join(dir, "nested", "c.tsv"),
	}, refs(inputs))
}

func refs(inputs []Input) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = in.Ref
	}
	return out
}

// fakeS3 serves objects from a map.
type fakeS3 struct {
	objects  map[string]string // "bucket/key" -> body
	pageSize int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey: The specified key does not exist")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	bucket := aws.ToString(in.Bucket) + "/"
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, bucket+aws.ToString(in.Prefix)) {
			keys = append(keys, strings.TrimPrefix(k, bucket))
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := len(keys)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[bucket+k])))})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func TestS3Source(t *testing.T) {
	fake := &fakeS3{
		pageSize: 1,
		objects: map[string]string{
			"data/imports/t1.tsv":   "entity_stable_id\nT1\n",
			"data/imports/t2.tsv":   "entity_stable_id\nT2\n",
			"data/imports/skip.txt": "x",
			"data/other/t3.tsv":     "x",
			"data/other/a#1.tsv":    "hash",
			"data/other/a":          "wrong object",
		},
	}
	r := NewResolver(NewS3SourceWithClient(fake))
	ctx := context.Background()

	inputs, err := r.Resolve(ctx, "s3://data/imports/*.tsv")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://data/imports/t1.tsv", "s3://data/imports/t2.tsv"}, refs(inputs))

	rc, err := r.Open(ctx, inputs[1])
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "entity_stable_id\nT2\n", string(body))

	inputs, err = r.Resolve(ctx, "s3://data/imports/t?.tsv")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://data/imports/t1.tsv", "s3://data/imports/t2.tsv"}, refs(inputs))

	rc, err = r.Open(ctx, Input{Ref: "s3://data/other/a#1.tsv"})
	require.NoError(t, err)
	body, err = io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hash", string(body))

	single, err := r.Resolve(ctx, "s3://data/imports/t1.tsv")
	require.NoError(t, err)
	assert.Equal(t, []Input{{Ref: "s3://data/imports/t1.tsv"}}, single)

	_, err = r.Open(ctx, Input{Ref: "s3://data/missing.tsv"})
	assert.ErrorContains(t, err, "NoSuchKey")

	_, err = r.Resolve(ctx, "s3://data/none/*.tsv")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		ref    string
		bucket string
		key    string
	}{
		{ref: "s3://bucket/path/to/file.tsv", bucket: "bucket", key: "path/to/file.tsv"},
		{ref: "s3://b/data/file_?.tsv", bucket: "b", key: "data/file_?.tsv"},
		{ref: "s3://b/data/a#1.tsv", bucket: "b", key: "data/a#1.tsv"},
		{ref: "s3://b/data/50%25.tsv", bucket: "b", key: "data/50%25.tsv"},
		{ref: "s3://b/dir//x.tsv", bucket: "b", key: "dir//x.tsv"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}

	for _, bad := range []string{"s3://bucket", "s3://bucket/", "s3:///key", "http://b/k"} {
		_, _, err := ParseS3URL(bad)
		assert.Error(t, err, bad)
	}
}

func TestStaticPrefix(t *testing.T) {
	assert.Equal(t, "imports/", staticPrefix("imports/*.tsv"))
	assert.Equal(t, "a/b/", staticPrefix("a/b/**/c.tsv"))
	assert.Equal(t, "", staticPrefix("*.tsv"))
	assert.Equal(t, "a/b.tsv", staticPrefix("a/b.tsv"))
}
