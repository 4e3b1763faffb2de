package runner

import (
	"context"
	"time"

	"github.com/printwerk/labelpress/internal/storage"
)

// NewBlobStore returns the configured blob store: S3 when a bucket is
// set, the local filesystem under the data folder otherwise.
func NewBlobStore(cfg *Config) (storage.BlobStore, error) {
	if cfg.S3Bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return storage.NewS3(ctx, cfg.S3Bucket, cfg.AwsRegion)
	}
	return storage.NewLocal(cfg.DataFolder)
}
