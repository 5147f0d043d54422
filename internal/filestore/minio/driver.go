// Package minio implements filestore.Store on top of minio-go.
package minio

import (
	"context"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/filestore"
)

// Driver is safe for concurrent use.
type Driver struct {
	client *miniogo.Client
	region string
}

// New creates a client for cfg and pings the server before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	if cfg.Endpoint == "" {
		return nil, errs.New(errs.ErrKindConfiguration, "object store endpoint is empty")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, region: cfg.Region}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.ListBuckets(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op; the SDK holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := d.client.BucketExists(ctx, bucket)
	if err != nil {
		return mapError(err, "failed to check bucket "+bucket)
	}
	if exists {
		return nil
	}
	err = d.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{Region: d.region})
	if err != nil {
		// lost a creation race with another writer
		if code := miniogo.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return mapError(err, "failed to create bucket "+bucket)
	}
	return nil
}

func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	info, err := d.client.PutObject(ctx, bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return nil, mapError(err, "failed to put object "+key)
	}
	return &filestore.ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  opts.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object "+key)
	}

	// GetObject is lazy; Stat surfaces NoSuchKey
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, mapError(err, "failed to stat object "+key)
	}

	return &object{ReadCloser: obj, info: objectInfo(stat)}, nil
}

func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object "+key)
	}
	return objectInfo(stat), nil
}

func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	// cancelling stops the SDK's listing goroutine when Limit cuts us short
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]filestore.ObjectInfo, 0)
	for obj := range d.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{
		Prefix:    opts.Prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		results = append(results, *objectInfo(obj))
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}
	return results, nil
}

func objectInfo(o miniogo.ObjectInfo) *filestore.ObjectInfo {
	return &filestore.ObjectInfo{
		Key:          o.Key,
		Size:         o.Size,
		ContentType:  o.ContentType,
		ETag:         o.ETag,
		LastModified: o.LastModified,
	}
}

type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
