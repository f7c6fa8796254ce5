package blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Storage stores attachment bytes in an S3-compatible object store. Files
// are served through direct object URLs, so GetFile is not applicable.
type S3Storage struct {
	client *minio.Client
	bucket string
	useSSL bool
}

// S3Options configures the object store client.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewS3Storage connects to the object store and ensures the bucket exists.
func NewS3Storage(ctx context.Context, opts S3Options) (*S3Storage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &S3Storage{client: client, bucket: opts.Bucket, useSSL: opts.UseSSL}, nil
}

// UploadFile decodes the payload and writes a single object. Either the
// object is fully written and a resolvable URL returned, or nothing is kept.
func (s *S3Storage) UploadFile(ctx context.Context, name, mimeType, payload string) (UploadResult, error) {
	embeddedType, data, err := decodeDataURL(payload)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if embeddedType != "" {
		mimeType = embeddedType
	}

	objectName := fmt.Sprintf("uploads/%d-%s", time.Now().UnixMilli(), name)
	_, err = s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return UploadResult{
		URL:  fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, objectName),
		Name: name,
		Type: AttachmentType(mimeType, name),
	}, nil
}

// GetFile is not applicable: clients fetch objects through their URL.
func (s *S3Storage) GetFile(ctx context.Context, fileID string) (File, error) {
	return File{}, ErrNotProxied
}
