package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ikkim/cpportal-backend/config"
)

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrFileTooLarge           = errors.New("file too large")
	ErrInvalidFolder          = errors.New("invalid upload folder")
)

// 업로드 폴더 (자료 필드별)
const (
	FolderIcons        = "materials/icons"
	FolderVerification = "materials/verification"
)

var allowedFolders = map[string]bool{
	FolderIcons:        true,
	FolderVerification: true,
}

// AllowedImageTypes 업로드 가능한 이미지 형식 → 확장자
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Uploader stores an image and returns the URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, folder, filename, contentType string, r io.Reader, size int64) (string, error)
	PresignUpload(ctx context.Context, folder, filename, contentType string) (*PresignedURLResponse, error)
	Driver() string
}

type PresignedURLResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
	Key       string `json:"key"`
}

// New picks the implementation named by cfg.Driver
func New(cfg *config.StorageConfig) (Uploader, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Storage(cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.BaseURL), nil
	case "minio":
		return NewMinioStorage(cfg.Minio)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ValidateImage checks the declared type and size of an upload
func ValidateImage(contentType string, size, maxSize int64) error {
	if _, ok := AllowedImageTypes[normalizeContentType(contentType)]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
	if size > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, maxSize)
	}
	return nil
}

// ValidateFolder only the material folders are writable
func ValidateFolder(folder string) error {
	if !allowedFolders[folder] {
		return fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
	}
	return nil
}

func normalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// objectKey folder/uuid.ext; the client file name only contributes its extension
func objectKey(folder, filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = AllowedImageTypes[normalizeContentType(contentType)]
	}
	return fmt.Sprintf("%s/%s%s", strings.Trim(folder, "/"), uuid.New().String(), ext)
}
