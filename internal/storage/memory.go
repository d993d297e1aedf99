package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"katalog/internal/models"

	"github.com/google/uuid"
)

// MemoryGateway keeps objects in process memory. Used for local runs and tests.
type MemoryGateway struct {
	mu        sync.RWMutex
	bucket    string
	prefix    string
	publicURL string
	objects   map[string][]byte
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway(bucket, prefix, publicURL string) *MemoryGateway {
	if bucket == "" {
		bucket = "products"
	}
	if publicURL == "" {
		publicURL = "memory://local"
	}
	return &MemoryGateway{
		bucket:    bucket,
		prefix:    prefix,
		publicURL: publicURL,
		objects:   make(map[string][]byte),
	}
}

// Upload stores the file body under a fresh key.
func (g *MemoryGateway) Upload(ctx context.Context, file File) (*models.Asset, error) {
	if file.Body == nil {
		return nil, fmt.Errorf("file %q has no body", file.Name)
	}
	data, err := io.ReadAll(file.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", file.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := ObjectKey(g.prefix, uuid.NewString(), file.Name)

	g.mu.Lock()
	g.objects[key] = data
	g.mu.Unlock()

	return newAsset(g.bucket, key, ObjectURL(g.publicURL, g.bucket, key), file, int64(len(data))), nil
}

// Delete removes the object. Absent keys are not an error.
func (g *MemoryGateway) Delete(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects, fileID)
	return nil
}

// Exists reports whether an object is stored under fileID.
func (g *MemoryGateway) Exists(fileID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.objects[fileID]
	return ok
}

// Object returns a copy of the stored bytes.
func (g *MemoryGateway) Object(fileID string) ([]byte, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	data, ok := g.objects[fileID]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// Len returns the number of stored objects.
func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}
