package source

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bmatcuk/doublestar/v4"
)

// S3API is the subset of the S3 client the source uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config configures the S3 client. Credentials come from the default AWS
// chain (environment, shared config, instance role).
type S3Config struct {
	Region    string
	Endpoint  string // Optional; set for MinIO or other S3-compatible stores
	PathStyle bool
}

// S3Source reads input objects from S3.
type S3Source struct {
	client S3API
}

// NewS3Source builds a client from cfg.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3SourceWithClient(client), nil
}

// NewS3SourceWithClient wraps an existing client.
func NewS3SourceWithClient(client S3API) *S3Source {
	return &S3Source{client: client}
}

// ParseS3URL splits s3://bucket/key into its parts. The key is taken
// verbatim: ?, # and % are key characters, not URL syntax.
func ParseS3URL(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%q is not an s3://bucket/key URL", ref)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%q is not an s3://bucket/key URL", ref)
	}
	if key == "" {
		return "", "", fmt.Errorf("%q has no object key", ref)
	}
	return bucket, key, nil
}

// Resolve expands ref. A key without glob syntax is returned as is; it is
// checked when opened.
func (s *S3Source) Resolve(ctx context.Context, ref string) ([]Input, error) {
	bucket, key, err := ParseS3URL(ref)
	if err != nil {
		return nil, err
	}
	if !hasMeta(key) {
		return []Input{{Ref: ref}}, nil
	}
	if !doublestar.ValidatePattern(key) {
		return nil, fmt.Errorf("invalid glob %q", ref)
	}

	prefix := staticPrefix(key)
	var inputs []Input
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			name := aws.ToString(obj.Key)
			ok, err := doublestar.Match(key, name)
			if err != nil {
				return nil, fmt.Errorf("match %q: %w", key, err)
			}
			if ok {
				inputs = append(inputs, Input{Ref: "s3://" + bucket + "/" + name, Size: aws.ToInt64(obj.Size)})
			}
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoMatch, ref)
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Ref < inputs[j].Ref })
	return inputs, nil
}

// Open streams the object named by ref.
func (s *S3Source) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URL(ref)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return out.Body, nil
}

// staticPrefix returns the part of a glob before its first meta character,
// cut back to the last path separator.
func staticPrefix(pattern string) string {
	i := strings.IndexAny(pattern, "*?[{\\")
	if i < 0 {
		return pattern
	}
	return pattern[:strings.LastIndex(pattern[:i], "/")+1]
}
