// Package storage provides the asset gateway: the narrow upload/delete boundary
// between the catalog and the object store holding product images.
package storage

import (
	"context"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"katalog/internal/models"

	"github.com/google/uuid"
)

// File is a binary payload headed for the object store.
type File struct {
	Name        string
	ContentType string
	// Size is -1 when unknown.
	Size int64
	Body io.Reader
}

// AssetGateway uploads and deletes assets in an object store.
// Delete must succeed for keys that no longer exist.
type AssetGateway interface {
	Upload(ctx context.Context, file File) (*models.Asset, error)
	Delete(ctx context.Context, fileID string) error
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// ObjectKey builds the storage key for an asset. Only a short alphanumeric
// extension of the original filename survives; the rest comes from id.
func ObjectKey(prefix, id, filename string) string {
	key := id
	if ext := strings.ToLower(path.Ext(filename)); extPattern.MatchString(ext) {
		key += ext
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// ObjectURL joins a public base URL, bucket and key into a resolvable location.
func ObjectURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + key
}

func newAsset(bucket, key, fileURL string, file File, size int64) *models.Asset {
	return &models.Asset{
		ID:          uuid.NewString(),
		Bucket:      bucket,
		FileURL:     fileURL,
		FileID:      key,
		ContentType: contentType(file),
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}
}

func contentType(file File) string {
	if file.ContentType == "" {
		return "application/octet-stream"
	}
	return file.ContentType
}
