package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// maxPageBytes bounds a single page image.
const maxPageBytes = 20 << 20

// PageLoader resolves page references into image payloads.
//
// A reference is an http(s) URL, a base64 data URL, or a file path. Relative paths are resolved against the assets
// directory. The MIME type is detected from the content, not taken from the reference.
type PageLoader struct {
	assetsDir  string
	httpClient *http.Client
}

// NewPageLoader creates a loader reading local pages from assetsDir.
func NewPageLoader(assetsDir string, client *http.Client) *PageLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &PageLoader{assetsDir: assetsDir, httpClient: client}
}

// Load fetches the image behind ref.
func (l *PageLoader) Load(ctx context.Context, ref string) (models.PageImage, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.PageImage{}, fmt.Errorf("%w: empty page reference", shared.ErrInvalidInput)
	}

	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(ref, "data:"):
		data, err = decodeDataURL(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		data, err = l.fetch(ctx, ref)
	default:
		data, err = l.readFile(ref)
	}
	if err != nil {
		return models.PageImage{}, err
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return models.PageImage{}, fmt.Errorf("%w: page %s is %s, not an image", shared.ErrInvalidInput, displayRef(ref), mt.String())
	}

	return models.PageImage{Ref: displayRef(ref), Data: data, MIMEType: mt.String()}, nil
}

func (l *PageLoader) fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch page %s: status %d", ref, resp.StatusCode)
	}
	return readLimited(resp.Body)
}

func (l *PageLoader) readFile(ref string) ([]byte, error) {
	path := ref
	if u, err := url.Parse(ref); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	path = l.resolve(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()
	return readLimited(f)
}

// resolve places path under the assets directory. Rooted references such as /Mangas/1/01.webp are site paths and
// resolve under the assets directory too, unless only the absolute file exists.
func (l *PageLoader) resolve(path string) string {
	if l.assetsDir == "" {
		return path
	}
	if !filepath.IsAbs(path) {
		return filepath.Join(l.assetsDir, path)
	}
	under := filepath.Join(l.assetsDir, path)
	if _, err := os.Stat(under); err == nil {
		return under
	}
	return path
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	if len(data) > maxPageBytes {
		return nil, fmt.Errorf("%w: page exceeds %d bytes", shared.ErrInvalidInput, maxPageBytes)
	}
	return data, nil
}

// decodeDataURL extracts the payload of a base64 data URL. The declared media type is ignored.
func decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: only base64 data URLs are supported", shared.ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed data URL: %w", shared.ErrInvalidInput, err)
	}
	return data, nil
}

// displayRef shortens data URLs for logs and errors.
func displayRef(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		meta, _, _ := strings.Cut(ref, ",")
		return meta + ",..."
	}
	return ref
}
