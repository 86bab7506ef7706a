package repository

import (
	"context"
	"fmt"
	"io"

	"gocloud.dev/blob"

	// Registered bucket schemes. file:// serves disk buckets in deployment,
	// mem:// serves tests and local development.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// blobArtifactStore persists report binaries in a gocloud.dev bucket.
type blobArtifactStore struct {
	bucket *blob.Bucket
}

// OpenArtifactStore opens the bucket at the given URL (e.g.
// "file:///var/lib/siteline/reports" or "mem://").
func OpenArtifactStore(ctx context.Context, bucketURL string) (ArtifactStore, func() error, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact bucket %q: %w", bucketURL, err)
	}
	return &blobArtifactStore{bucket: bucket}, bucket.Close, nil
}

// NewArtifactStore wraps an already-open bucket. Tests use this with a
// memblob bucket.
func NewArtifactStore(bucket *blob.Bucket) ArtifactStore {
	return &blobArtifactStore{bucket: bucket}
}

func (s *blobArtifactStore) Put(ctx context.Context, key string, contentType string, data []byte) error {
	opts := &blob.WriterOptions{ContentType: contentType}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return fmt.Errorf("failed to store artifact %q: %w", key, err)
	}
	return nil
}

func (s *blobArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %q: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %q: %w", key, err)
	}
	return data, nil
}
