// Package assets fetches the request template and its script font.
package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const maxAssetSize = 32 << 20

// HTTPSource downloads assets from a static file server. Every request
// carries the asset version and a cache-busting timestamp so that a replaced
// template is picked up without waiting for caches to expire.
type HTTPSource struct {
	baseURL      string
	version      string
	templateFile string
	fontFile     string
	httpClient   *http.Client
	logger       *logrus.Logger
	now          func() time.Time
}

func NewHTTPSource(baseURL, version, templateFile, fontFile string, timeout time.Duration, logger *logrus.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL:      baseURL,
		version:      version,
		templateFile: templateFile,
		fontFile:     fontFile,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

func (s *HTTPSource) Template(ctx context.Context) ([]byte, error) {
	return s.fetch(ctx, s.templateFile)
}

func (s *HTTPSource) Font(ctx context.Context) ([]byte, error) {
	return s.fetch(ctx, s.fontFile)
}

func (s *HTTPSource) assetURL(name string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid asset base URL: %w", err)
	}
	u = u.JoinPath(name)
	q := u.Query()
	if s.version != "" {
		q.Set("v", s.version)
	}
	q.Set("nocache", strconv.FormatInt(s.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *HTTPSource) fetch(ctx context.Context, name string) ([]byte, error) {
	assetURL, err := s.assetURL(name)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset server returned status %d for %s", resp.StatusCode, name)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("asset %s is empty", name)
	}

	s.logger.WithFields(logrus.Fields{
		"asset":   name,
		"version": s.version,
		"bytes":   len(data),
	}).Debug("Asset fetched")
	return data, nil
}

// DirSource reads assets from a local directory.
type DirSource struct {
	dir          string
	templateFile string
	fontFile     string
}

func NewDirSource(dir, templateFile, fontFile string) *DirSource {
	return &DirSource{dir: dir, templateFile: templateFile, fontFile: fontFile}
}

func (s *DirSource) Template(ctx context.Context) ([]byte, error) {
	return s.read(s.templateFile)
}

func (s *DirSource) Font(ctx context.Context) ([]byte, error) {
	return s.read(s.fontFile)
}

func (s *DirSource) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("asset %s is empty", name)
	}
	return data, nil
}
