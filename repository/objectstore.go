package repository

import "context"

// ObjectStore is the blob storage capability consumed by the asset workflow.
// Keys are opaque slash-separated paths; the private and public tiers share
// one namespace and differ only by prefix.
type ObjectStore interface {
	// Get returns the object bytes and content type, or NotFound.
	Get(ctx context.Context, key string) ([]byte, string, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	// DeleteBatch removes the listed keys best-effort; missing keys are not an
	// error.
	DeleteBatch(ctx context.Context, keys []string) error
	Exists(ctx context.Context, key string) (bool, error)
}
