package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"geo-challenge/internal/config"
	"geo-challenge/internal/model"
)

// CloudinaryStore uploads photos to Cloudinary.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStore creates a Cloudinary-backed store.
func NewCloudinaryStore(cfg config.CloudinaryConfig) (*CloudinaryStore, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary configuration is missing")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: cfg.Folder}, nil
}

// Put uploads p under key and returns its secure URL.
func (s *CloudinaryStore) Put(ctx context.Context, key string, p model.Photo) (string, error) {
	overwrite := false

	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(p.Data), uploader.UploadParams{
		PublicID:     key,
		Folder:       s.folder,
		Overwrite:    &overwrite,
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// Delete removes the photo stored under key. Missing photos are not an error.
func (s *CloudinaryStore) Delete(ctx context.Context, key string) error {
	publicID := key
	if s.folder != "" {
		publicID = path.Join(s.folder, key)
	}

	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "image",
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary rejected delete: %s", res.Error.Message)
	}
	return nil
}

// FilesystemStore writes photos under a local directory and serves them
// from baseURL.
type FilesystemStore struct {
	dir     string
	baseURL string
}

// NewFilesystemStore creates a store rooted at dir.
func NewFilesystemStore(dir, baseURL string) *FilesystemStore {
	return &FilesystemStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Dir returns the root directory.
func (s *FilesystemStore) Dir() string { return s.dir }

// Put writes p under key and returns its URL.
func (s *FilesystemStore) Put(_ context.Context, key string, p model.Photo) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", errors.New("invalid photo key")
	}
	name := key + extensionFor(p.ContentType)
	target := filepath.Join(s.dir, filepath.FromSlash(name))

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create photo directory: %w", err)
	}
	if err := os.WriteFile(target, p.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	return s.baseURL + "/" + name, nil
}

// Delete removes the photo stored under key, whatever its extension.
// Missing photos are not an error.
func (s *FilesystemStore) Delete(_ context.Context, key string) error {
	if key == "" || strings.Contains(key, "..") {
		return errors.New("invalid photo key")
	}
	base := filepath.Join(s.dir, filepath.FromSlash(key))
	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return fmt.Errorf("failed to find photo: %w", err)
	}
	for _, m := range append(matches, base) {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete photo: %w", err)
		}
	}
	return nil
}
