package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultContentType = "application/octet-stream"

// MinioClient is the subset of *minio.Client the storage uses.
type MinioClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// MinioStorage keeps byte streams as objects at the root of one bucket.
type MinioStorage struct {
	client MinioClient
	bucket string
}

func NewMinioStorage(endpoint, accessKeyID, secretAccessKey, bucket string, useSSL bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewMinioStorageWithClient(client, bucket), nil
}

func NewMinioStorageWithClient(client MinioClient, bucket string) *MinioStorage {
	return &MinioStorage{client: client, bucket: bucket}
}

func (s *MinioStorage) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (int64, error) {
	if !ValidName(name) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	// Not atomic with the put; a collision slipping through here is as
	// unlikely as the name collision itself.
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err == nil {
		return 0, ErrObjectExists
	} else if !isNotFound(err) {
		return 0, fmt.Errorf("failed to stat object: %w", err)
	}

	if contentType == "" {
		contentType = defaultContentType
	}
	info, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("failed to put object: %w", err)
	}
	return info.Size, nil
}

func (s *MinioStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

func (s *MinioStorage) Remove(ctx context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (s *MinioStorage) List(ctx context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		if !ValidName(obj.Key) {
			continue
		}
		objects = append(objects, ObjectInfo{Name: obj.Key, Size: obj.Size, ModTime: obj.LastModified})
	}
	return objects, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

type bucketManager interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// EnsureBucket creates the bucket when it does not exist yet. Clients that
// cannot manage buckets are assumed to point at an existing one.
func (s *MinioStorage) EnsureBucket(ctx context.Context) (created bool, err error) {
	bm, ok := s.client.(bucketManager)
	if !ok {
		return false, nil
	}
	exists, err := bm.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return false, nil
	}
	if err := bm.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return false, fmt.Errorf("failed to create bucket %q: %w", s.bucket, err)
	}
	return true, nil
}
