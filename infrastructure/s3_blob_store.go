// infrastructure/s3_blob_store.go
package infrastructure

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/vitovidale/video-api-service/config"
	"github.com/vitovidale/video-api-service/domain"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3BlobStore struct {
	client  S3API
	bucket  string
	baseURL string
	logger  logrus.FieldLogger
}

var _ domain.BlobStore = (*S3BlobStore)(nil)

// NewS3Client builds a client; with an endpoint override it uses path
// style addressing as LocalStack requires.
func NewS3Client(cfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

func NewS3BlobStore(client S3API, blob config.BlobConfig, awsCfg config.AWSConfig, logger logrus.FieldLogger) *S3BlobStore {
	return &S3BlobStore{
		client:  client,
		bucket:  blob.Bucket,
		baseURL: s3BaseURL(blob, awsCfg),
		logger:  logger,
	}
}

func s3BaseURL(blob config.BlobConfig, awsCfg config.AWSConfig) string {
	switch {
	case blob.PublicBaseURL != "":
		return blob.PublicBaseURL
	case awsCfg.Endpoint != "":
		return joinObjectURL(awsCfg.Endpoint, blob.Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", blob.Bucket, awsCfg.Region)
	}
}

func (s *S3BlobStore) Upload(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return "", domain.UploadFailure("failed to upload to s3", err)
	}

	s.logger.WithFields(logrus.Fields{"bucket": s.bucket, "key": key, "bytes": len(content)}).Debug("uploaded video to s3")
	return joinObjectURL(s.baseURL, key), nil
}
