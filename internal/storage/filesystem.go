package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxArtifactBytes caps a single downloaded artifact.
const maxArtifactBytes = 512 << 20

// FileStore persists generated artifacts onto the local filesystem and
// fetches remote vendor artifacts into it. Keys are always relative to the
// base path and sanitized against directory traversal.
type FileStore struct {
	basePath   string
	httpClient *http.Client
}

// NewFileStore initializes a FileStore rooted at basePath. A nil client
// falls back to a default with a generous download timeout.
func NewFileStore(basePath string, client *http.Client) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &FileStore{basePath: basePath, httpClient: client}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// SaveFromURL downloads a remote artifact and stores it under
// folder/prefix-<random><ext>, returning the storage key. The random element
// keeps keys unguessable even when the remote URL is known.
func (s *FileStore) SaveFromURL(ctx context.Context, remoteURL, prefix, folder, ext string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	parsed, err := url.Parse(strings.TrimSpace(remoteURL))
	if err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("storage: invalid remote url %q", remoteURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("storage: build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: download artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("storage: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return "", fmt.Errorf("storage: read artifact: %w", err)
	}
	if len(data) > maxArtifactBytes {
		return "", errors.New("storage: artifact exceeds size limit")
	}
	if !strings.HasPrefix(ext, ".") && ext != "" {
		ext = "." + ext
	}
	key := fmt.Sprintf("%s/%s-%s%s", strings.Trim(folder, "/"), prefix, uuid.NewString(), ext)
	return s.Write(ctx, key, data)
}

// Resolve maps a storage key to an absolute path strictly inside the base
// directory. Any key that would escape the root is rejected.
func (s *FileStore) Resolve(key string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	base, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("storage: resolve base: %w", err)
	}
	abs, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("storage: resolve key: %w", err)
	}
	if abs != base && !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return "", errors.New("storage: key escapes base path")
	}
	return abs, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
