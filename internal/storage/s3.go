package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"katalog/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3Config holds options for the S3 backend.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint is set for S3-compatible services.
	Endpoint     string
	UsePathStyle bool
	Prefix       string
	PublicURL    string
}

// S3Gateway stores assets in an S3 bucket.
type S3Gateway struct {
	client    *s3.Client
	bucket    string
	prefix    string
	publicURL string
}

// NewS3Gateway builds an S3 client from the default credential chain, or from
// static keys when both are given.
func NewS3Gateway(ctx context.Context, cfg S3Config) (*S3Gateway, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is not configured")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Gateway{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		publicURL: s3PublicURL(cfg),
	}, nil
}

func s3PublicURL(cfg S3Config) string {
	switch {
	case cfg.PublicURL != "":
		return cfg.PublicURL
	case cfg.Endpoint != "":
		return cfg.Endpoint
	default:
		return fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	}
}

// Upload puts the file into the bucket under a fresh key.
func (g *S3Gateway) Upload(ctx context.Context, file File) (*models.Asset, error) {
	if file.Body == nil {
		return nil, fmt.Errorf("file %q has no body", file.Name)
	}
	key := ObjectKey(g.prefix, uuid.NewString(), file.Name)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        file.Body,
		ContentType: aws.String(contentType(file)),
	}
	if file.Size >= 0 {
		input.ContentLength = aws.Int64(file.Size)
	}
	if _, err := g.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return newAsset(g.bucket, key, ObjectURL(g.publicURL, g.bucket, key), file, file.Size), nil
}

// Delete removes the object. S3 already treats missing keys as deleted.
func (g *S3Gateway) Delete(ctx context.Context, fileID string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) || strings.Contains(err.Error(), "NoSuchKey") {
			return nil
		}
		return fmt.Errorf("failed to delete object %s: %w", fileID, err)
	}
	return nil
}
