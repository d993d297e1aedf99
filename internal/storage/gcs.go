package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"katalog/internal/models"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const gcsPublicURL = "https://storage.googleapis.com"

// GCSGateway stores assets in a Google Cloud Storage bucket.
type GCSGateway struct {
	client    *gcs.Client
	bucket    string
	prefix    string
	publicURL string
}

// NewGCSGateway wraps an existing GCS client.
func NewGCSGateway(client *gcs.Client, bucket, prefix, publicURL string) (*GCSGateway, error) {
	if client == nil {
		return nil, errors.New("gcs client is required")
	}
	if bucket == "" {
		return nil, errors.New("gcs bucket is not configured")
	}
	if publicURL == "" {
		publicURL = gcsPublicURL
	}
	return &GCSGateway{client: client, bucket: bucket, prefix: prefix, publicURL: publicURL}, nil
}

// Upload streams the file into the bucket under a fresh key.
func (g *GCSGateway) Upload(ctx context.Context, file File) (*models.Asset, error) {
	if file.Body == nil {
		return nil, fmt.Errorf("file %q has no body", file.Name)
	}
	key := ObjectKey(g.prefix, uuid.NewString(), file.Name)

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(file)
	written, err := io.Copy(w, file.Body)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize object %s: %w", key, err)
	}

	return newAsset(g.bucket, key, ObjectURL(g.publicURL, g.bucket, key), file, written), nil
}

// Delete removes the object. Missing objects are not an error.
func (g *GCSGateway) Delete(ctx context.Context, fileID string) error {
	err := g.client.Bucket(g.bucket).Object(fileID).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete object %s: %w", fileID, err)
	}
	return nil
}
