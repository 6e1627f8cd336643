// Package source resolves the --data argument into readable inputs.
//
// A reference is one of:
//
//	path/to/file.tsv              a local file
//	data/**/treatments_*.tsv      a local glob, expanded in sorted order
//	s3://bucket/key.tsv           a single object
//	s3://bucket/prefix/*.tsv      an object glob, matched against listed keys
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoMatch is returned when a glob matches nothing.
var ErrNoMatch = errors.New("no files match")

// Input is one resolved, not yet opened, data file.
type Input struct {
	Ref  string // Local path or s3:// URL
	Size int64  // Zero when unknown
}

// Resolver expands and opens data references.
type Resolver struct {
	s3 *S3Source
}

// NewResolver returns a resolver. A nil s3 source rejects s3:// references.
func NewResolver(s3 *S3Source) *Resolver {
	return &Resolver{s3: s3}
}

// Resolve expands ref into the inputs it names.
func (r *Resolver) Resolve(ctx context.Context, ref string) ([]Input, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("empty data reference")
	}
	if IsS3(ref) {
		if r.s3 == nil {
			return nil, fmt.Errorf("s3 input %q: no S3 source configured", ref)
		}
		return r.s3.Resolve(ctx, ref)
	}
	return resolveLocal(ref)
}

// Open opens one resolved input.
func (r *Resolver) Open(ctx context.Context, in Input) (io.ReadCloser, error) {
	if IsS3(in.Ref) {
		if r.s3 == nil {
			return nil, fmt.Errorf("s3 input %q: no S3 source configured", in.Ref)
		}
		return r.s3.Open(ctx, in.Ref)
	}
	return os.Open(in.Ref)
}

// IsS3 reports whether ref is an s3:// URL.
func IsS3(ref string) bool {
	return strings.HasPrefix(ref, "s3://")
}

// hasMeta reports whether ref contains glob syntax.
func hasMeta(ref string) bool {
	return strings.ContainsAny(ref, "*?[{")
}

func resolveLocal(ref string) ([]Input, error) {
	if !hasMeta(ref) {
		info, err := os.Stat(ref)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", ref)
		}
		return []Input{{Ref: ref, Size: info.Size()}}, nil
	}

	if !doublestar.ValidatePattern(ref) {
		return nil, fmt.Errorf("invalid glob %q", ref)
	}
	matches, err := doublestar.FilepathGlob(ref, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", ref, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoMatch, ref)
	}
	sort.Strings(matches)

	inputs := make([]Input, 0, len(matches))
	for _, m := range matches {
		in := Input{Ref: m}
		if info, err := os.Stat(m); err == nil {
			in.Size = info.Size()
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
