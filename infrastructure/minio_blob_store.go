// infrastructure/minio_blob_store.go
package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/vitovidale/video-api-service/config"
	"github.com/vitovidale/video-api-service/domain"
)

type MinioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type MinioBlobStore struct {
	client  MinioAPI
	bucket  string
	baseURL string
	logger  logrus.FieldLogger
}

var _ domain.BlobStore = (*MinioBlobStore)(nil)

// NewMinioClient connects and creates the bucket when it is missing.
func NewMinioClient(ctx context.Context, cfg config.MinioConfig, bucket string) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return client, nil
}

func NewMinioBlobStore(client MinioAPI, blob config.BlobConfig, cfg config.MinioConfig, logger logrus.FieldLogger) *MinioBlobStore {
	baseURL := blob.PublicBaseURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = joinObjectURL(scheme+"://"+cfg.Endpoint, blob.Bucket)
	}
	return &MinioBlobStore{client: client, bucket: blob.Bucket, baseURL: baseURL, logger: logger}
}

func (s *MinioBlobStore) Upload(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", domain.UploadFailure("failed to upload to minio", err)
	}

	s.logger.WithFields(logrus.Fields{"bucket": s.bucket, "key": key, "etag": info.ETag}).Debug("uploaded video to minio")
	return joinObjectURL(s.baseURL, key), nil
}
