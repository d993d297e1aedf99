package storage

import (
	"context"
	"fmt"

	"katalog/internal/models"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds MinIO connection details.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string
	PublicURL string
}

// MinioGateway stores assets in a MinIO (or any S3-compatible) bucket.
type MinioGateway struct {
	client    *minio.Client
	bucket    string
	prefix    string
	publicURL string
}

// NewMinioGateway connects to MinIO and makes sure the bucket exists.
func NewMinioGateway(ctx context.Context, cfg MinioConfig) (*MinioGateway, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is not configured")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is not configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}

	g := &MinioGateway{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		publicURL: publicURL,
	}
	if err := g.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *MinioGateway) ensureBucket(ctx context.Context, region string) error {
	exists, err := g.client.BucketExists(ctx, g.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", g.bucket, err)
	}
	if exists {
		return nil
	}
	if err := g.client.MakeBucket(ctx, g.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		// Another instance may have created it in the meantime.
		if exists, errExists := g.client.BucketExists(ctx, g.bucket); errExists == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", g.bucket, err)
	}
	return nil
}

// Upload puts the file into the bucket under a fresh key.
func (g *MinioGateway) Upload(ctx context.Context, file File) (*models.Asset, error) {
	if file.Body == nil {
		return nil, fmt.Errorf("file %q has no body", file.Name)
	}
	key := ObjectKey(g.prefix, uuid.NewString(), file.Name)

	info, err := g.client.PutObject(ctx, g.bucket, key, file.Body, file.Size, minio.PutObjectOptions{
		ContentType: contentType(file),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return newAsset(g.bucket, key, ObjectURL(g.publicURL, g.bucket, key), file, info.Size), nil
}

// Delete removes the object. MinIO reports success for missing keys.
func (g *MinioGateway) Delete(ctx context.Context, fileID string) error {
	err := g.client.RemoveObject(ctx, g.bucket, fileID, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("failed to delete object %s: %w", fileID, err)
	}
	return nil
}
