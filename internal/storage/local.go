package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes uploads below a base directory.
type LocalStorage struct {
	basePath string
	baseURL  string
}

func NewLocal(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, baseURL: baseURL}, nil
}

func (l *LocalStorage) Save(_ context.Context, key string, r io.Reader, size int64, _ string) (string, error) {
	key = normalize(key)
	full, err := l.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(dst, r)
	if err == nil && size >= 0 && n != size {
		err = fmt.Errorf("wrote %d of %d bytes", n, size)
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(full)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return key, nil
}

// Delete removes key. A missing file is not an error.
func (l *LocalStorage) Delete(_ context.Context, key string) error {
	full, err := l.resolve(normalize(key))
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) URL(key string) string {
	return joinURL(l.baseURL, normalize(key))
}

// resolve maps key onto the filesystem and refuses paths that escape basePath.
func (l *LocalStorage) resolve(key string) (string, error) {
	full := filepath.Join(l.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.basePath, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return full, nil
}
