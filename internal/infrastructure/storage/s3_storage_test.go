package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pdv/catalogsync/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeS3 answers path-style GetObject requests from an in-memory object map.
func fakeS3(t *testing.T, objects map[string]string, contentType string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, ok := objects[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func storageConfig(endpoint string) *config.StorageConfig {
	return &config.StorageConfig{
		Enabled:         true,
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}
}

func TestNewS3ImageStore_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config", func(t *testing.T) {
		_, err := NewS3ImageStore(ctx, nil)
		assert.ErrorContains(t, err, "configuration is required")
	})

	t.Run("missing keys", func(t *testing.T) {
		_, err := NewS3ImageStore(ctx, &config.StorageConfig{Bucket: "images"})
		assert.ErrorContains(t, err, "access key id")
	})

	t.Run("endpoint without scheme", func(t *testing.T) {
		s, err := NewS3ImageStore(ctx, storageConfig("minio.local:9000"))
		require.NoError(t, err)
		assert.Empty(t, s.Bucket())
	})

	t.Run("no endpoint uses AWS", func(t *testing.T) {
		cfg := storageConfig("")
		cfg.Bucket = "images"
		s, err := NewS3ImageStore(ctx, cfg, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "images", s.Bucket())
	})
}

func TestS3ImageStore_Fetch(t *testing.T) {
	ctx := context.Background()
	srv := fakeS3(t, map[string]string{
		"catalog/items/7.png":   "\x89PNG\r\n\x1a\nfake",
		"catalog/items/big.png": strings.Repeat("x", 64),
	}, "image/png")

	cfg := storageConfig(srv.URL)
	cfg.Bucket = "catalog"
	s, err := NewS3ImageStore(ctx, cfg, WithMaxBytes(32))
	require.NoError(t, err)

	t.Run("returns body and content type", func(t *testing.T) {
		data, contentType, err := s.Fetch(ctx, "catalog", "items/7.png")
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG\r\n\x1a\nfake", string(data))
		assert.Equal(t, "image/png", contentType)
	})

	t.Run("missing object", func(t *testing.T) {
		_, _, err := s.Fetch(ctx, "catalog", "items/404.png")
		assert.ErrorIs(t, err, ErrObjectNotFound)
	})

	t.Run("other bucket rejected", func(t *testing.T) {
		_, _, err := s.Fetch(ctx, "private", "items/7.png")
		assert.ErrorIs(t, err, ErrBucketNotAllowed)
	})

	t.Run("oversized object rejected", func(t *testing.T) {
		_, _, err := s.Fetch(ctx, "catalog", "items/big.png")
		assert.ErrorIs(t, err, ErrObjectTooLarge)
	})

	t.Run("empty key", func(t *testing.T) {
		_, _, err := s.Fetch(ctx, "catalog", "")
		assert.Error(t, err)
	})
}
