package storage

import (
	"context"
	"io"
)

type Object struct {
	Name string
	Size int64
}

// ObjectStore is the storage behind pretrained checkpoint directories and
// sampled artifact uploads. Keys are slash-separated paths within a bucket.
type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)

	DeleteObjects(ctx context.Context, bucket, prefix string) error

	// DownloadDir materializes every object under prefix into dest,
	// preserving relative paths.
	DownloadDir(ctx context.Context, bucket, prefix, dest string, overwrite bool) error

	// UploadDir stores every file under src beneath prefix.
	UploadDir(ctx context.Context, bucket, prefix, src string) error
}
