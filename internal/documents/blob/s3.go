package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"qochi/pkg/platform/sentinel"
)

// S3Config holds the bucket settings; credentials come from the default
// AWS chain (env, shared config, instance role).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, e.g. MinIO
	Prefix    string
	PathStyle bool
}

// S3 stores blobs in one bucket, keys optionally namespaced by Prefix.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3WithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewS3WithClient(client *s3.Client, bucket, prefix string) *S3 {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3) Driver() Driver { return DriverS3 }

func (s *S3) objectKey(key string) *string {
	return aws.String(s.prefix + key)
}

// Put emulates create-only semantics with a Head first.
func (s *S3) Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error) {
	if _, err := s.Head(ctx, key); err == nil {
		return Info{}, fmt.Errorf("blob %s: %w", key, sentinel.ErrConflict)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return Info{}, err
	}
	input := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: s.objectKey(key), Body: r}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Info{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return s.Head(ctx, key)
}

func (s *S3) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: s.objectKey(key)})
	if err != nil {
		return Info{}, nil, s.translate(key, err)
	}
	return info(key, out.ContentLength, out.ContentType, out.LastModified), out.Body, nil
}

func (s *S3) Head(ctx context.Context, key string) (Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: s.objectKey(key)})
	if err != nil {
		return Info{}, s.translate(key, err)
	}
	return info(key, out.ContentLength, out.ContentType, out.LastModified), nil
}

func (s *S3) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.Head(ctx, key); errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: s.objectKey(key)}); err != nil {
		return false, fmt.Errorf("delete object %s: %w", key, err)
	}
	return true, nil
}

func (s *S3) translate(key string, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("blob %s: %w", key, sentinel.ErrNotFound)
	}
	return fmt.Errorf("blob %s: %w: %v", key, sentinel.ErrUnavailable, err)
}

func info(key string, size *int64, contentType *string, modified *time.Time) Info {
	i := Info{Key: key}
	if size != nil {
		i.Size = *size
	}
	if contentType != nil {
		i.ContentType = *contentType
	}
	if modified != nil {
		i.LastModified = modified.UTC()
	}
	return i
}
