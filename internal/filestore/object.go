package filestore

import (
	"io"
	"time"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	// Key is the full path within the bucket, e.g. "validations/2024/run.json".
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// Object is a streaming handle to an object's content. Callers must Close it.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

// PutOptions carries upload metadata.
type PutOptions struct {
	ContentType string
	// Metadata is stored as user metadata (x-amz-meta-*).
	Metadata map[string]string
}

// ListOptions filters ListObjects. Listing is always recursive.
type ListOptions struct {
	Prefix string
	// Limit caps the number of results; 0 means no cap.
	Limit int
}
