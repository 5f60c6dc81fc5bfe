package services

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/aleerpe/internal/shared"
)

var jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")

func TestPageLoaderFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ch1"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ch1", "01.png"), pngHeader, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0644))

	loader := NewPageLoader(dir, nil)

	t.Run("relative to assets", func(t *testing.T) {
		page, err := loader.Load(context.Background(), "ch1/01.png")
		require.NoError(t, err)
		assert.Equal(t, "image/png", page.MIMEType)
		assert.Equal(t, pngHeader, page.Data)
		assert.Equal(t, "ch1/01.png", page.Ref)
	})

	t.Run("absolute path", func(t *testing.T) {
		page, err := NewPageLoader("", nil).Load(context.Background(), filepath.Join(dir, "ch1", "01.png"))
		require.NoError(t, err)
		assert.Equal(t, "image/png", page.MIMEType)
	})

	t.Run("site path under assets", func(t *testing.T) {
		page, err := loader.Load(context.Background(), "/ch1/01.png")
		require.NoError(t, err)
		assert.Equal(t, pngHeader, page.Data)
	})

	t.Run("absolute path outside assets", func(t *testing.T) {
		_, err := loader.Load(context.Background(), filepath.Join(dir, "ch1", "01.png"))
		require.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.Load(context.Background(), "ch1/99.png")
		require.Error(t, err)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := loader.Load(context.Background(), "notes.txt")
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("empty reference", func(t *testing.T) {
		_, err := loader.Load(context.Background(), "  ")
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestPageLoaderDataURL(t *testing.T) {
	loader := NewPageLoader("", nil)

	t.Run("mime type comes from the content", func(t *testing.T) {
		ref := "data:image/png;base64," + base64.StdEncoding.EncodeToString(jpegHeader)

		page, err := loader.Load(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", page.MIMEType)
		assert.Equal(t, "data:image/png;base64,...", page.Ref)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := loader.Load(context.Background(), "data:image/png,rawbytes")
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := loader.Load(context.Background(), "data:image/png;base64,@@@")
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestPageLoaderHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pages/01.jpg":
			w.Write(jpegHeader)
		case "/pages/page.html":
			w.Write([]byte("<html><body>hi</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	loader := NewPageLoader("", server.Client())

	t.Run("fetches the page", func(t *testing.T) {
		page, err := loader.Load(context.Background(), server.URL+"/pages/01.jpg")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", page.MIMEType)
		assert.Equal(t, jpegHeader, page.Data)
	})

	t.Run("status error", func(t *testing.T) {
		_, err := loader.Load(context.Background(), server.URL+"/pages/02.jpg")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
	})

	t.Run("html is rejected", func(t *testing.T) {
		_, err := loader.Load(context.Background(), server.URL+"/pages/page.html")
		require.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := loader.Load(ctx, server.URL+"/pages/01.jpg")
		require.ErrorIs(t, err, context.Canceled)
	})
}
