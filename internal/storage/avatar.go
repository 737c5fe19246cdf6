package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxAvatarSize caps uploaded avatar images at 5 MiB.
const DefaultMaxAvatarSize = 5 << 20

var (
	// ErrUnsupportedImageType is returned for files without an allowed image extension.
	ErrUnsupportedImageType = errors.New("avatar store: unsupported image type")
	// ErrImageTooLarge is returned when the upload exceeds the configured size limit.
	ErrImageTooLarge = errors.New("avatar store: image too large")
)

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// AvatarStore persists profile images on the local filesystem. Stored names
// are prefixed with a random UUID so uploads never collide or overwrite
// another user's file.
type AvatarStore struct {
	dir     string
	maxSize int64
}

// NewAvatarStore creates the upload directory if needed and returns a store.
func NewAvatarStore(dir string, maxSize int64) (*AvatarStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("avatar store: directory is required")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxAvatarSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("avatar store: create directory: %w", err)
	}
	return &AvatarStore{dir: dir, maxSize: maxSize}, nil
}

// Dir returns the directory backing the store.
func (s *AvatarStore) Dir() string {
	return s.dir
}

// Save writes the uploaded file under a generated name and returns that name.
func (s *AvatarStore) Save(file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", errors.New("avatar store: file is required")
	}
	if file.Size > s.maxSize {
		return "", ErrImageTooLarge
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrUnsupportedImageType
	}

	name := uuid.NewString() + ext

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("avatar store: open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("avatar store: create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, s.maxSize+1)); err != nil {
		return "", fmt.Errorf("avatar store: write file: %w", err)
	}

	return name, nil
}

// Remove deletes a previously stored avatar. Missing files are not an error
// so callers can remove the old image unconditionally after a replacement.
func (s *AvatarStore) Remove(name string) error {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("avatar store: remove file: %w", err)
	}
	return nil
}
