package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"katalog/internal/config"
	"katalog/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		AppPort:        ":0",
		DatabaseDriver: "sqlite",
		DatabaseDSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		Storage: config.StorageConfig{
			Driver:    "memory",
			Bucket:    "products",
			Prefix:    "products",
			PublicURL: "http://cdn.local",
		},
		OrphanQueue:    "asset_orphan_queue",
		ReplaceOrder:   "upload-then-delete",
		MaxPageSize:    50,
		MaxUploadBytes: 1 << 20,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, testConfig())

	resp, err := app.Fiber.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["storage"])
}

func TestProductRoundTrip(t *testing.T) {
	app := newTestApp(t, testConfig())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "Lamp"))
	require.NoError(t, w.WriteField("price", "12.50"))
	require.NoError(t, w.WriteField("quantity", "3"))
	require.NoError(t, w.WriteField("tag", "lighting"))
	require.NoError(t, w.WriteField("color", "white"))
	part, err := w.CreateFormFile("primaryImg", "lamp.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("lamp"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Fiber.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Fiber.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products?take=5", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Data []models.Product `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Lamp", page.Data[0].Name)
	require.NotNil(t, page.Data[0].PrimaryImage)
	assert.Contains(t, page.Data[0].PrimaryImage.FileURL, "http://cdn.local/products/")
}

func TestNewApp_RejectsUnknownDrivers(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Driver = "ftp"
	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.DatabaseDriver = "oracle"
	_, err = NewApp(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
