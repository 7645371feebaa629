// Package media stores uploaded product images on the local filesystem or in
// an S3-compatible bucket.
package media

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists an image and returns the URL it is served from.
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// ObjectName builds a unique object name that keeps the upload's extension.
func ObjectName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("product-%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}

// SaveUpload copies a multipart upload into s under a fresh name.
func SaveUpload(ctx context.Context, s Store, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()
	return s.Save(ctx, ObjectName(fh.Filename), fh.Header.Get("Content-Type"), f)
}

// Local writes images under Dir and serves them from URLPrefix.
type Local struct {
	Dir       string
	URLPrefix string
}

// NewLocal creates dir if needed.
func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Local{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (l *Local) Save(_ context.Context, name, _ string, r io.Reader) (string, error) {
	name = filepath.Base(name)
	dst := filepath.Join(l.Dir, name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return l.URLPrefix + "/" + name, nil
}

// Delete removes an image previously returned by Save. URLs outside the
// prefix are ignored.
func (l *Local) Delete(_ context.Context, url string) error {
	if !strings.HasPrefix(url, l.URLPrefix+"/") {
		return nil
	}
	name := path.Base(url)
	if err := os.Remove(filepath.Join(l.Dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
