// Package blob is the opaque document store. Drivers mirror a minimal
// subset of S3 so the filesystem and memory drivers can emulate it.
package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"qochi/internal/platform/config"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is implemented by every driver. Put fails with sentinel.ErrConflict
// when key exists; Get and Head return sentinel.ErrNotFound for a missing key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	Driver() Driver
}

// Open builds the driver selected by cfg.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch Driver(strings.ToLower(cfg.Driver)) {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			PathStyle: cfg.S3Endpoint != "",
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
