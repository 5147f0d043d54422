// Package filestore defines the object storage interface validation reports
// are archived through. internal/filestore/minio is the only provider.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	err = store.EnsureBucket(ctx, "dbkit-reports")
package filestore

import (
	"context"
	"io"
)

// Store is implemented by every object storage provider.
type Store interface {
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error

	// EnsureBucket creates bucket unless it already exists.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject uploads size bytes from r to key. size may be -1 when unknown.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) (*ObjectInfo, error)

	// GetObject opens the object at key. The caller must Close it.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata without downloading the content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// ListObjects returns objects under opts.Prefix in key order.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)
}
