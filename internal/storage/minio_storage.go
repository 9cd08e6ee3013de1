package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ikkim/cpportal-backend/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioRegion keeps presigning offline; without it the client asks the server for the bucket location.
const minioRegion = "us-east-1"

// MinioStorage is the Uploader for MinIO and other S3 compatible servers
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioStorage(cfg config.MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: minioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &MinioStorage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// EnsureBucket creates the bucket when missing
func (m *MinioStorage) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: minioRegion}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

func (m *MinioStorage) Driver() string {
	return "minio"
}

func (m *MinioStorage) Upload(ctx context.Context, folder, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := objectKey(folder, filename, contentType)

	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: normalizeContentType(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return m.publicURL + "/" + key, nil
}

func (m *MinioStorage) PresignUpload(ctx context.Context, folder, filename, contentType string) (*PresignedURLResponse, error) {
	key := objectKey(folder, filename, contentType)

	u, err := m.client.PresignedPutObject(ctx, m.bucket, key, presignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return &PresignedURLResponse{
		UploadURL: u.String(),
		FileURL:   m.publicURL + "/" + key,
		Key:       key,
	}, nil
}
