// Package imagestore holds uploaded avatar images.
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Uploader stores an image and returns the URL clients should use for it.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// ErrNotImage is returned when the payload is not a decodable image.
var ErrNotImage = errors.New("file must be an image")

// DetectImage checks the declared content type and that the bytes decode as a
// supported image. It returns the decoded format ("png", "jpeg", "gif").
func DetectImage(contentType string, data []byte) (string, error) {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return "", ErrNotImage
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrNotImage
	}
	return format, nil
}

// LocalStore writes images under a directory that is served statically.
type LocalStore struct {
	basePath      string
	publicBaseURL string
}

// NewLocalStore creates a store rooted at basePath.
func NewLocalStore(basePath, publicBaseURL string) *LocalStore {
	return &LocalStore{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// BasePath returns the directory images are written to.
func (s *LocalStore) BasePath() string {
	return s.basePath
}

// Upload writes data to key via a temp file and rename, so a reader never sees
// a partial image. An existing image with the same key is replaced.
func (s *LocalStore) Upload(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid image key %q", key)
	}
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return "", err
	}

	tmpPath := filepath.Join(s.basePath, fmt.Sprintf(".tmp-%d", time.Now().UnixNano()))
	defer os.Remove(tmpPath)

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, filepath.Join(s.basePath, key)); err != nil {
		return "", err
	}
	return s.publicBaseURL + "/" + key, nil
}
